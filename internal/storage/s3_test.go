package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type recordingUploader struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (r *recordingUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.input = in
	b, _ := io.ReadAll(in.Body)
	r.body = string(b)
	return &manager.UploadOutput{}, nil
}

func TestExtensionFor(t *testing.T) {
	for ct, want := range map[string]string{
		"image/png":                ".png",
		"IMAGE/JPEG":               ".jpg",
		"image/webp; charset=utf8": ".webp",
	} {
		got, err := ExtensionFor(ct)
		if err != nil || got != want {
			t.Errorf("ExtensionFor(%q) = %q, %v", ct, got, err)
		}
	}
	for _, ct := range []string{"", "text/html", "video/mp4", "image/svg+xml"} {
		if _, err := ExtensionFor(ct); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("ExtensionFor(%q) err = %v", ct, err)
		}
	}
}

func TestUpload(t *testing.T) {
	up := &recordingUploader{}
	img := newImages(up, S3Config{Region: "ap-northeast-1", Bucket: "event-images"}, zap.NewNop())
	img.newKey = func(ext string) string { return "events/fixed" + ext }

	url, err := img.Upload(context.Background(), strings.NewReader("png-bytes"), 9, "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://event-images.s3.ap-northeast-1.amazonaws.com/events/fixed.png" {
		t.Fatalf("url = %q", url)
	}
	if aws.ToString(up.input.Bucket) != "event-images" || aws.ToString(up.input.Key) != "events/fixed.png" {
		t.Fatalf("input = %+v", up.input)
	}
	if aws.ToString(up.input.ContentType) != "image/png" || up.body != "png-bytes" {
		t.Fatalf("content type %q body %q", aws.ToString(up.input.ContentType), up.body)
	}
}

func TestUpload_Rejects(t *testing.T) {
	up := &recordingUploader{}
	img := newImages(up, S3Config{Bucket: "b"}, zap.NewNop())
	ctx := context.Background()

	if _, err := img.Upload(ctx, strings.NewReader("x"), 1, "application/pdf"); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("pdf err = %v", err)
	}
	if _, err := img.Upload(ctx, strings.NewReader(""), 0, "image/png"); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty err = %v", err)
	}
	if _, err := img.Upload(ctx, strings.NewReader("x"), MaxImageSize+1, "image/png"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("large err = %v", err)
	}
	if up.input != nil {
		t.Fatal("rejected upload reached S3")
	}
}

func TestUpload_DefaultKeyAndPublicBase(t *testing.T) {
	up := &recordingUploader{}
	img := newImages(up, S3Config{Bucket: "b", PublicBaseURL: "https://cdn.example/"}, zap.NewNop())

	url, err := img.Upload(context.Background(), strings.NewReader("gif"), 3, "image/gif")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	key := aws.ToString(up.input.Key)
	if !strings.HasPrefix(key, "events/") || !strings.HasSuffix(key, ".gif") || len(key) != len("events/")+36+len(".gif") {
		t.Fatalf("key = %q", key)
	}
	if url != "https://cdn.example/"+key {
		t.Fatalf("url = %q", url)
	}
}

func TestUpload_S3Error(t *testing.T) {
	img := newImages(&recordingUploader{err: errors.New("access denied")}, S3Config{Bucket: "b"}, zap.NewNop())
	if _, err := img.Upload(context.Background(), strings.NewReader("x"), 1, "image/png"); err == nil {
		t.Fatal("expected error")
	}
}
