package files

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

type fakeObjectStore struct {
	bucketExists bool
	madeBucket   string
	putBucket    string
	putObject    string
	putBody      []byte
	presigned    string
}

func (f *fakeObjectStore) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeObjectStore) MakeBucket(_ context.Context, bucketName string, _ minio.MakeBucketOptions) error {
	f.madeBucket = bucketName
	return nil
}

func (f *fakeObjectStore) PutObject(_ context.Context, bucketName, objectName string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.putBucket = bucketName
	f.putObject = objectName
	f.putBody, _ = io.ReadAll(reader)
	return minio.UploadInfo{Bucket: bucketName, Key: objectName}, nil
}

func (f *fakeObjectStore) PresignedGetObject(_ context.Context, bucketName, objectName string, _ time.Duration, _ url.Values) (*url.URL, error) {
	f.presigned = objectName
	return url.Parse("https://files.example.com/" + bucketName + "/" + objectName + "?sig=abc")
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"project.zip", "project.zip"},
		{"../../etc/passwd", "passwd"},
		{"..\\..\\evil.exe", "evil.exe"},
		{"my archive (1).tar.gz", "myarchive1.tar.gz"},
		{"...", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeObjectStore{bucketExists: false}
	svc := NewServiceWithClient(fake, "neka-project-files")

	if err := svc.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	if fake.madeBucket != "neka-project-files" {
		t.Fatalf("expected bucket created, got %q", fake.madeBucket)
	}
}

func TestUploadStoresUnderRequestPrefix(t *testing.T) {
	fake := &fakeObjectStore{bucketExists: true}
	svc := NewServiceWithClient(fake, "neka-project-files")

	body := []byte("zip-bytes")
	objectName, err := svc.Upload(context.Background(), "req_abc", "my site.zip", "application/zip", bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if objectName != "req_abc/mysite.zip" {
		t.Fatalf("unexpected object name %q", objectName)
	}
	if fake.putObject != objectName || !bytes.Equal(fake.putBody, body) {
		t.Fatalf("object not stored as expected: %q", fake.putObject)
	}
}

func TestUploadRejectsUnusableFilename(t *testing.T) {
	svc := NewServiceWithClient(&fakeObjectStore{}, "neka-project-files")

	if _, err := svc.Upload(context.Background(), "req_abc", "...", "application/zip", bytes.NewReader(nil), 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestDownloadURLPresignsObject(t *testing.T) {
	fake := &fakeObjectStore{}
	svc := NewServiceWithClient(fake, "neka-project-files")

	link, err := svc.DownloadURL(context.Background(), "req_abc", "project.zip", time.Minute)
	if err != nil {
		t.Fatalf("download url: %v", err)
	}
	if fake.presigned != "req_abc/project.zip" {
		t.Fatalf("unexpected object presigned: %q", fake.presigned)
	}
	if link == "" {
		t.Fatal("expected link")
	}
}
