package fs

import gonanoid "github.com/matoous/go-nanoid/v2"

// randomSuffix returns a short collision-resistant id for scratch paths
// (temp dirs, scratch archive names), the same nanoid generator the teacher
// uses for its test fixtures.
func randomSuffix() string {
	id, err := gonanoid.New(12)
	if err != nil {
		// gonanoid.New only fails on a broken crypto/rand reader.
		panic(err)
	}

	return id
}
