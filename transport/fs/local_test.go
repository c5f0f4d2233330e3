package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/riotkit-org/br-backup-controller/transport/fs"
)

func TestLocal_ForceMkdirAndFileExists(t *testing.T) {
	assert := NewWithT(t)

	local := fs.NewLocal(nil)
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")

	assert.Expect(local.ForceMkdir(context.Background(), nested)).To(Succeed())

	exists, err := local.FileExists(context.Background(), nested)
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(exists).To(BeTrue())

	exists, err = local.FileExists(context.Background(), filepath.Join(root, "missing"))
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(exists).To(BeFalse())
}

func TestLocal_DeleteToleratesAbsence(t *testing.T) {
	assert := NewWithT(t)

	local := fs.NewLocal(nil)

	err := local.Delete(context.Background(), filepath.Join(t.TempDir(), "never-existed"))
	assert.Expect(err).NotTo(HaveOccurred())
}

func TestLocal_LinkAndMakeExecutable(t *testing.T) {
	assert := NewWithT(t)

	local := fs.NewLocal(nil)
	root := t.TempDir()

	target := filepath.Join(root, "v1-tool")
	assert.Expect(os.WriteFile(target, []byte("#!/bin/sh\n"), 0o644)).To(Succeed())

	link := filepath.Join(root, "tool")
	assert.Expect(local.Link(context.Background(), target, link)).To(Succeed())

	resolved, err := os.Readlink(link)
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(resolved).To(Equal(target))

	assert.Expect(local.MakeExecutable(context.Background(), target)).To(Succeed())

	info, err := os.Stat(target)
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(info.Mode().Perm() & 0o100).NotTo(BeZero())
}

func TestLocal_PackUnpackRoundTrip(t *testing.T) {
	assert := NewWithT(t)

	local := fs.NewLocal(nil)
	srcDir := t.TempDir()

	assert.Expect(os.WriteFile(filepath.Join(srcDir, "file-a.txt"), []byte("alpha"), 0o644)).To(Succeed())
	assert.Expect(os.MkdirAll(filepath.Join(srcDir, "sub"), 0o755)).To(Succeed())
	assert.Expect(os.WriteFile(filepath.Join(srcDir, "sub", "file-b.txt"), []byte("beta"), 0o644)).To(Succeed())

	archive := filepath.Join(t.TempDir(), "bundle.tar.gz")
	assert.Expect(local.Pack(context.Background(), archive, srcDir, nil)).To(Succeed())

	dstDir := t.TempDir()
	assert.Expect(local.Unpack(context.Background(), archive, dstDir)).To(Succeed())

	contentA, err := os.ReadFile(filepath.Join(dstDir, "file-a.txt"))
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(string(contentA)).To(Equal("alpha"))

	contentB, err := os.ReadFile(filepath.Join(dstDir, "sub", "file-b.txt"))
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(string(contentB)).To(Equal("beta"))
}

func TestLocal_MoveRelocatesFile(t *testing.T) {
	assert := NewWithT(t)

	local := fs.NewLocal(nil)
	root := t.TempDir()

	src := filepath.Join(root, "src.txt")
	assert.Expect(os.WriteFile(src, []byte("data"), 0o644)).To(Succeed())

	dst := filepath.Join(root, "nested", "dst.txt")
	assert.Expect(local.Move(context.Background(), src, dst)).To(Succeed())

	_, err := os.Stat(src)
	assert.Expect(os.IsNotExist(err)).To(BeTrue())

	content, err := os.ReadFile(dst)
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(string(content)).To(Equal("data"))
}

func TestLocal_TempDirPathIsUnique(t *testing.T) {
	assert := NewWithT(t)

	local := fs.NewLocal(nil)

	assert.Expect(local.TempDirPath()).NotTo(Equal(local.TempDirPath()))
}
