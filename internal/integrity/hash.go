package integrity

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Checksums holds the digests computed over a finished download.
type Checksums struct {
	MD5    string
	SHA1   string
	SHA256 string
}

// File streams the file once through all three digests with a fixed-size
// buffer, so memory use does not grow with file size.
func File(path string) (Checksums, error) {
	f, err := os.Open(path)
	if err != nil {
		return Checksums{}, fmt.Errorf("error opening file for hashing: %v", err)
	}
	defer f.Close()

	md5Hash := md5.New()
	sha1Hash := sha1.New()
	sha256Hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(md5Hash, sha1Hash, sha256Hash), f); err != nil {
		return Checksums{}, fmt.Errorf("error hashing file: %v", err)
	}
	return Checksums{
		MD5:    hex.EncodeToString(md5Hash.Sum(nil)),
		SHA1:   hex.EncodeToString(sha1Hash.Sum(nil)),
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
	}, nil
}
