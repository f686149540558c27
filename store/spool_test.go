package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpoolContract(t *testing.T) {
	s, err := OpenSpool(filepath.Join(t.TempDir(), "emails.spool"))
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)
}

func TestSpoolReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.spool")

	s, err := OpenSpool(path)
	require.NoError(t, err)
	_, err = s.Save(context.Background(), testMessage("one"))
	require.NoError(t, err)
	_, err = s.Save(context.Background(), testMessage("two"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSpool(path)
	require.NoError(t, err)
	defer s.Close()

	msgs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "two", msgs[0].Subject)
	require.Equal(t, "one", msgs[1].Subject)
	require.Equal(t, "Hello\r\nBye", msgs[0].Body)
}
