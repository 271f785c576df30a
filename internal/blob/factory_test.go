package blob

import (
	"context"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, Config{FSRoot: t.TempDir()})
	assert.Equal(t, err, nil)
	assert.Equal(t, st.Driver(), DriverFilesystem)

	st, err = Open(ctx, Config{Driver: DriverMemory})
	assert.Equal(t, err, nil)
	assert.Equal(t, st.Driver(), DriverMemory)

	st, err = Open(ctx, Config{Driver: DriverS3, S3: S3Config{Bucket: "views", AccessKeyID: "a", SecretAccessKey: "b"}})
	assert.Equal(t, err, nil)
	assert.Equal(t, st.Driver(), DriverS3)

	_, err = Open(ctx, Config{Driver: DriverS3})
	assert.NotEqual(t, err, nil)

	_, err = Open(ctx, Config{Driver: "ftp"})
	assert.NotEqual(t, err, nil)
}

func TestMockS3RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMockS3()
	_, err := st.Put(ctx, "k", []byte("v"), nil)
	assert.Equal(t, err, nil)
	_, data, err := st.Get(ctx, "k")
	assert.Equal(t, err, nil)
	assert.Equal(t, string(data), "v")
}
