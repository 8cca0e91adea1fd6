package objectstore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/okian/gotsim/internal/adapters/objectstore"
	"github.com/okian/gotsim/internal/domain/failure"
	. "github.com/smartystreets/goconvey/convey"
)

// bucket is an in-memory S3 double.
type bucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newBucket() *bucket { return &bucket{objects: map[string][]byte{}} }

func (b *bucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (b *bucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Transfer(t *testing.T) {
	ctx := context.Background()

	Convey("Given a data directory with the raw files", t, func() {
		src := t.TempDir()
		So(os.WriteFile(filepath.Join(src, "character-deaths.csv"), []byte("Name\nArya\n"), 0o600), ShouldBeNil)
		So(os.WriteFile(filepath.Join(src, "character-profile.csv"), []byte("name\narya\n"), 0o600), ShouldBeNil)
		So(os.Mkdir(filepath.Join(src, "models"), 0o755), ShouldBeNil)

		b := newBucket()
		tr := objectstore.New(b, "msia423-project", "/raw/")

		Convey("When the directory is uploaded", func() {
			keys, err := tr.UploadDir(ctx, src)

			Convey("Then every regular file is stored under the prefix", func() {
				So(err, ShouldBeNil)
				So(keys, ShouldResemble, []string{"raw/character-deaths.csv", "raw/character-profile.csv"})
				So(string(b.objects["msia423-project/raw/character-deaths.csv"]), ShouldEqual, "Name\nArya\n")
			})

			Convey("And downloaded into a fresh directory", func() {
				dst := filepath.Join(t.TempDir(), "data")
				So(tr.Download(ctx, []string{"character-deaths.csv", "character-profile.csv"}, dst), ShouldBeNil)

				Convey("Then the files come back unchanged", func() {
					got, err := os.ReadFile(filepath.Join(dst, "character-profile.csv"))
					So(err, ShouldBeNil)
					So(string(got), ShouldEqual, "name\narya\n")
					entries, _ := os.ReadDir(dst)
					So(len(entries), ShouldEqual, 2)
				})
			})
		})

		Convey("When a missing object is downloaded", func() {
			dst := t.TempDir()
			err := tr.Download(ctx, []string{"nope.csv"}, dst)

			Convey("Then the error is external and nothing is left behind", func() {
				So(errors.Is(err, failure.ErrExternal), ShouldBeTrue)
				entries, _ := os.ReadDir(dst)
				So(len(entries), ShouldEqual, 0)
			})
		})

		Convey("When nothing is named", func() {
			_, err := tr.Upload(ctx, nil)
			So(errors.Is(err, objectstore.ErrNoFiles), ShouldBeTrue)
		})
	})

	Convey("Given no bucket", t, func() {
		_, err := objectstore.NewS3Transfer(ctx, objectstore.Config{Region: "us-east-2"})
		So(errors.Is(err, failure.ErrConfig), ShouldBeTrue)
	})
}
