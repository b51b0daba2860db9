package workbook

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neareports/internal/period"
	"neareports/internal/shared/testutil"
)

func fixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.xlsx")
	testutil.WriteWorkbook(t, path, testutil.Sheet{
		Name: "Data",
		Rows: [][]any{
			{"label", 1234.5, ""},
			{"x", "1,000", "text"},
		},
	})
	return path
}

func TestGuardSerializesSessions(t *testing.T) {
	path := fixture(t)
	g := NewGuard(50*time.Millisecond, nil)

	first, err := g.Open(context.Background(), path)
	require.NoError(t, err)

	_, err = g.Open(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	require.NoError(t, first.Close())
	require.NoError(t, first.Close(), "double close is harmless")

	second, err := g.Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestGuardOpenMissingFile(t *testing.T) {
	g := NewGuard(time.Second, nil)
	_, err := g.Open(context.Background(), filepath.Join(t.TempDir(), "absent.xlsx"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.False(t, errors.Is(err, ErrUnavailable))

	// The engine must not be left held.
	sess, err := g.Open(context.Background(), fixture(t))
	require.NoError(t, err)
	sess.Close()
}

func TestGuardOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0644))

	g := NewGuard(time.Second, nil)
	_, err := g.Open(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSessionReadWrite(t *testing.T) {
	path := fixture(t)
	g := NewGuard(time.Second, nil)

	sess, err := g.Open(context.Background(), path)
	require.NoError(t, err)

	v, err := sess.GetFloat("Data", "B1")
	require.NoError(t, err)
	assert.Equal(t, 1234.5, v)

	v, err = sess.GetFloat("Data", "B2")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, v)

	v, err = sess.GetFloat("Data", "Z99")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = sess.GetFloat("Data", "C2")
	assert.Error(t, err)

	_, err = sess.GetCell("Nope", "A1")
	assert.ErrorIs(t, err, ErrSheetMissing)

	require.NoError(t, sess.StampPeriod("Data", period.Month{Year: 2024, Month: time.June}))
	require.NoError(t, sess.SetCell("Data", "D5", "written"))
	require.NoError(t, sess.Save())
	require.NoError(t, sess.Close())

	assert.Equal(t, "June", testutil.ReadCell(t, path, "Data", "C3"))
	assert.Equal(t, "2024", testutil.ReadCell(t, path, "Data", "C4"))
	assert.Equal(t, "written", testutil.ReadCell(t, path, "Data", "D5"))
}

func TestClearRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clear.xlsx")
	testutil.WriteWorkbook(t, path, testutil.Sheet{
		Name:   "interruption",
		Origin: "A18",
		Rows: [][]any{
			{"hdr", "keep", "keep"},
			{"a", "b", "c", "d", "e", "f", "g", "H", "i"},
			{"a", "b"},
		},
	})

	g := NewGuard(time.Second, nil)
	sess, err := g.Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, sess.ClearRange("interruption", "B19:G1000"))
	require.NoError(t, sess.Save())
	require.NoError(t, sess.Close())

	assert.Equal(t, "keep", testutil.ReadCell(t, path, "interruption", "B18"))
	assert.Equal(t, "a", testutil.ReadCell(t, path, "interruption", "A19"))
	assert.Equal(t, "", testutil.ReadCell(t, path, "interruption", "B19"))
	assert.Equal(t, "", testutil.ReadCell(t, path, "interruption", "G19"))
	assert.Equal(t, "H", testutil.ReadCell(t, path, "interruption", "H19"))
	assert.Equal(t, "", testutil.ReadCell(t, path, "interruption", "B20"))
}

func TestGuardAcquireHonoursContext(t *testing.T) {
	path := fixture(t)
	g := NewGuard(time.Minute, nil)

	held, err := g.Open(context.Background(), path)
	require.NoError(t, err)
	defer held.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Open(ctx, path)
	assert.ErrorIs(t, err, ErrUnavailable)
}
