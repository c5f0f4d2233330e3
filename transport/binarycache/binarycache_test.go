package binarycache

import (
	"context"
	"fmt"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/riotkit-org/br-backup-controller/transport"
)

// fakeFS is an in-memory transport/fs.Filesystem double, tracking every
// call so tests can assert on sequencing without touching a real disk.
type fakeFS struct {
	existing  map[string]bool
	downloads []string
	copies    []string
	links     []string
	deletes   []string
	packs     []string
	unpacks   []string
	execs     []string

	downloadErr error
}

func newFakeFS() *fakeFS {
	return &fakeFS{existing: map[string]bool{}}
}

func (f *fakeFS) ForceMkdir(context.Context, string) error { return nil }

func (f *fakeFS) Download(_ context.Context, url, dst string) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}

	f.downloads = append(f.downloads, fmt.Sprintf("%s->%s", url, dst))
	f.existing[dst] = true

	return nil
}

func (f *fakeFS) Delete(_ context.Context, path string) error {
	f.deletes = append(f.deletes, path)
	delete(f.existing, path)

	return nil
}

func (f *fakeFS) Link(_ context.Context, src, dst string) error {
	f.links = append(f.links, fmt.Sprintf("%s->%s", src, dst))

	return nil
}

func (f *fakeFS) MakeExecutable(_ context.Context, path string) error {
	f.execs = append(f.execs, path)

	return nil
}

func (f *fakeFS) CopyTo(_ context.Context, localPath, remotePath string) error {
	f.copies = append(f.copies, fmt.Sprintf("%s->%s", localPath, remotePath))
	f.existing[remotePath] = true

	return nil
}

func (f *fakeFS) Pack(_ context.Context, archive, srcDir string, files []string) error {
	f.packs = append(f.packs, archive)
	f.existing[archive] = true

	return nil
}

func (f *fakeFS) Unpack(_ context.Context, archive, dstDir string) error {
	f.unpacks = append(f.unpacks, archive)

	return nil
}

func (f *fakeFS) FileExists(_ context.Context, path string) (bool, error) {
	return f.existing[path], nil
}

func (f *fakeFS) TempDirPath() string { return "/tmp/scratch" }

func (f *fakeFS) Move(_ context.Context, src, dst string) error {
	delete(f.existing, src)
	f.existing[dst] = true

	return nil
}

func binary(name string) transport.RequiredBinary {
	return transport.RequiredBinary{
		URL:      "https://example.invalid/" + name,
		Filename: name,
		Version:  "1.0.0",
	}
}

func TestDownloadRequiredTools_SkipsAlreadyCachedBinaries(t *testing.T) {
	assert := NewWithT(t)

	local := newFakeFS()
	cache := New(local, "/cache/bin", "/cache/bin/.versions")

	tool := binary("br-backup-maker")
	local.existing[cache.versionSlot(tool)] = true

	assert.Expect(cache.DownloadRequiredTools(context.Background(), []transport.RequiredBinary{tool})).To(Succeed())
	assert.Expect(local.downloads).To(BeEmpty())
}

func TestDownloadRequiredTools_DownloadsAndMarksExecutableWhenMissing(t *testing.T) {
	assert := NewWithT(t)

	local := newFakeFS()
	cache := New(local, "/cache/bin", "/cache/bin/.versions")

	tool := binary("tracexit")

	assert.Expect(cache.DownloadRequiredTools(context.Background(), []transport.RequiredBinary{tool})).To(Succeed())
	assert.Expect(local.downloads).To(HaveLen(1))
	assert.Expect(local.execs).To(ContainElement(cache.versionSlot(tool)))
}

func TestCopyEncryptionKeys_SkipsAbsentKeys(t *testing.T) {
	assert := NewWithT(t)

	src := newFakeFS()
	dst := newFakeFS()

	assert.Expect(CopyEncryptionKeys(context.Background(), src, dst, "", "")).To(Succeed())
	assert.Expect(dst.copies).To(BeEmpty())
}

func TestCopyEncryptionKeys_CopiesOnlyKeysPresentOnSource(t *testing.T) {
	assert := NewWithT(t)

	src := newFakeFS()
	src.existing["/keys/pub.asc"] = true

	dst := newFakeFS()

	err := CopyEncryptionKeys(context.Background(), src, dst, "/keys/pub.asc", "/keys/missing.key")
	assert.Expect(err).NotTo(HaveOccurred())

	assert.Expect(dst.copies).To(ConsistOf("/keys/pub.asc->/tmp/.gpg.pub"))
}

func TestTransferToTarget_NoOpWhenEverythingAlreadyStaged(t *testing.T) {
	assert := NewWithT(t)

	local := newFakeFS()
	cache := New(local, "/cache/bin", "/cache/bin/.versions")

	dst := newFakeFS()
	tool := binary("tracexit")
	dst.existing["/opt/br/bin/.versions/"+tool.CacheKey()] = true

	err := cache.TransferToTarget(context.Background(), dst, "/opt/br/bin", "/opt/br/bin/.versions", []transport.RequiredBinary{tool})
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(dst.copies).To(BeEmpty())
	assert.Expect(dst.unpacks).To(BeEmpty())
}

func TestTransferToTarget_BundlesAndLinksMissingBinaries(t *testing.T) {
	assert := NewWithT(t)

	local := newFakeFS()
	cache := New(local, "/cache/bin", "/cache/bin/.versions")

	dst := newFakeFS()
	tool := binary("tracexit")

	err := cache.TransferToTarget(context.Background(), dst, "/opt/br/bin", "/opt/br/bin/.versions", []transport.RequiredBinary{tool})
	assert.Expect(err).NotTo(HaveOccurred())

	assert.Expect(dst.copies).To(HaveLen(1))
	assert.Expect(dst.unpacks).To(HaveLen(1))
	assert.Expect(dst.deletes).To(ContainElement("/opt/br/bin/tracexit"))
	assert.Expect(dst.links).To(HaveLen(1))
	assert.Expect(dst.execs).To(ContainElement("/opt/br/bin/.versions/" + tool.CacheKey()))
}

func TestStandardBinaries_PinsBackupMakerAndTracexit(t *testing.T) {
	assert := NewWithT(t)

	binaries := StandardBinaries()
	assert.Expect(binaries).To(HaveLen(2))
	assert.Expect(binaries[0].Filename).To(Equal("br-backup-maker"))
	assert.Expect(binaries[1].Filename).To(Equal("tracexit"))
}
