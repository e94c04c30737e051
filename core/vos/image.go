package vos

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/google/go-containerregistry/pkg/name"
	containerregistry "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
)

// LoadSavedImage reads an image from the output of `docker save`. If tag is
// empty the archive must hold exactly one tagged image.
func LoadSavedImage(path, tag string) (containerregistry.Image, error) {
	if tag == "" {
		manifest, err := tarball.LoadManifest(func() (io.ReadCloser, error) {
			return os.Open(path)
		})
		if err != nil {
			return nil, err
		}

		var tags []string
		for _, m := range manifest {
			tags = append(tags, m.RepoTags...)
		}
		if len(tags) != 1 {
			return nil, fmt.Errorf("expected one tag in the archive, specify one of: %q", tags)
		}
		tag = tags[0]
	}

	parsed, err := name.NewTag(tag)
	if err != nil {
		return nil, err
	}
	return tarball.ImageFromPath(path, &parsed)
}

// WriteImage flattens the layers of img, applying whiteouts, into a
// .tar.gz usable as a filesystem image.
func WriteImage(img containerregistry.Image, w io.Writer) error {
	flat := mutate.Extract(img)
	defer flat.Close()

	gw := gzip.NewWriter(w)
	if _, err := io.Copy(gw, flat); err != nil {
		gw.Close()
		return fmt.Errorf("couldn't flatten image: %w", err)
	}
	return gw.Close()
}
