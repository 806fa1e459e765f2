package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPutter struct {
	mock.Mock
}

func (m *mockPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func TestArchiver_Upload(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "scorecard.xlsx")
	require.NoError(t, os.WriteFile(file, []byte("workbook"), 0o644))

	t.Run("uploads under the period", func(t *testing.T) {
		client := new(mockPutter)
		var body []byte
		client.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			return *in.Bucket == "archive" && *in.Key == "scorecards/2024-01-07/scorecard.xlsx"
		})).
			Run(func(args mock.Arguments) {
				body, _ = io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
			}).
			Return(&s3.PutObjectOutput{}, nil)

		a, err := New(client, "archive", "scorecards")
		require.NoError(t, err)

		key, err := a.Upload(ctx, "2024-01-07", file)
		require.NoError(t, err)
		assert.Equal(t, "scorecards/2024-01-07/scorecard.xlsx", key)
		assert.Equal(t, "workbook", string(body))
		client.AssertExpectations(t)
	})

	t.Run("upload error", func(t *testing.T) {
		client := new(mockPutter)
		client.On("PutObject", ctx, mock.Anything).Return(nil, errors.New("access denied"))

		a, err := New(client, "archive", "")
		require.NoError(t, err)

		_, err = a.Upload(ctx, "2024-01-07", file)
		assert.ErrorContains(t, err, "access denied")
	})

	t.Run("missing file", func(t *testing.T) {
		a, err := New(new(mockPutter), "archive", "")
		require.NoError(t, err)

		_, err = a.Upload(ctx, "2024-01-07", filepath.Join(t.TempDir(), "absent.xlsx"))
		assert.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	_, err := New(nil, "archive", "")
	assert.Error(t, err)

	_, err = New(new(mockPutter), "", "")
	assert.Error(t, err)

	a, err := New(new(mockPutter), "archive", "")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-07/scorecard.xlsx", a.Key("2024-01-07", "/tmp/out/scorecard.xlsx"))
}
