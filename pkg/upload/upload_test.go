package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "report.csv", want: "report.csv"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `C:\Users\me\photo.png`, want: "photo.png"},
		{in: "/", wantErr: true},
		{in: "..", wantErr: true},
		{in: "", wantErr: true},
		{in: "a\x00b", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := CleanName(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDiskStoreSaveNamesFileAfterFilename(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 0)
	require.NoError(t, err)

	loc, err := store.Save(context.Background(), "hello.txt", 5, strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "hello.txt"), loc)
	assert.True(t, filepath.IsAbs(loc))

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Remove(context.Background(), loc))
	_, err = os.Stat(loc)
	assert.True(t, os.IsNotExist(err))
}

func TestDiskStoreShortInput(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "short.bin", 10, strings.NewReader("abc"))
	assert.ErrorIs(t, err, io.EOF)

	_, statErr := os.Stat(filepath.Join(store.Dir(), "short.bin"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDiskStoreTooLarge(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 4)
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "big.bin", 5, strings.NewReader("12345"))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDiskStoreRemoveOutsideDir(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 0)
	require.NoError(t, err)
	err = store.Remove(context.Background(), "/etc/passwd")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiskStoreCleanup(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), 0)
	require.NoError(t, err)

	oldLoc, err := store.Save(context.Background(), "old.txt", 1, strings.NewReader("o"))
	require.NoError(t, err)
	newLoc, err := store.Save(context.Background(), "new.txt", 1, strings.NewReader("n"))
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldLoc, past, past))

	require.NoError(t, store.Cleanup(time.Hour))

	_, err = os.Stat(oldLoc)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(newLoc)
	assert.NoError(t, err)
}

func TestTempStore(t *testing.T) {
	store := TempStore()
	assert.True(t, filepath.IsAbs(store.Dir()))
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  [][]byte
	deletes []*s3.DeleteObjectInput
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreSave(t *testing.T) {
	client := &fakeS3{}
	store := NewS3Store(client, "bucket", "uploads/", 0)

	loc, err := store.Save(context.Background(), "../photo.png", 4, bytes.NewReader([]byte("data-and-more")))
	require.NoError(t, err)

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "bucket", aws.ToString(put.Bucket))
	assert.True(t, strings.HasPrefix(aws.ToString(put.Key), "uploads/"))
	assert.True(t, strings.HasSuffix(aws.ToString(put.Key), "/photo.png"))
	assert.Equal(t, int64(4), aws.ToInt64(put.ContentLength))
	assert.Equal(t, "../photo.png", put.Metadata["original-filename"])
	assert.Equal(t, "data", string(client.bodies[0]))
	assert.Equal(t, "s3://bucket/"+aws.ToString(put.Key), loc)

	require.NoError(t, store.Remove(context.Background(), loc))
	require.Len(t, client.deletes, 1)
	assert.Equal(t, aws.ToString(put.Key), aws.ToString(client.deletes[0].Key))
}

func TestS3StoreErrors(t *testing.T) {
	boom := errors.New("boom")
	store := NewS3Store(&fakeS3{err: boom}, "bucket", "", 3)

	_, err := store.Save(context.Background(), "a.txt", 4, strings.NewReader("abcd"))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = store.Save(context.Background(), "a.txt", 2, strings.NewReader("ab"))
	assert.ErrorIs(t, err, boom)

	err = store.Remove(context.Background(), "s3://other/key")
	assert.ErrorIs(t, err, os.ErrNotExist)
	err = store.Remove(context.Background(), "/tmp/a.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewS3Client(t *testing.T) {
	client := NewS3Client(S3Options{
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	})
	opts := client.Options()
	assert.Equal(t, "eu-west-1", opts.Region)
	assert.Equal(t, "http://localhost:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)

	creds, err := opts.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id", creds.AccessKeyID)
}
