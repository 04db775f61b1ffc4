package oem

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInitiallyEmpty(t *testing.T) {
	s := NewStore()
	ds := s.Snapshot()
	require.NotNil(t, ds)
	assert.Empty(t, ds.StateVectors)
	assert.False(t, s.Loaded())
	assert.Equal(t, -1.0, s.AgeSeconds())
}

func TestStoreReplace(t *testing.T) {
	s := NewStore()
	fetchedAt := time.Now().Add(-time.Minute)

	ds, err := s.Replace(loadFixture(t), "feed", fetchedAt)
	require.NoError(t, err)
	assert.Same(t, ds, s.Snapshot())
	assert.Len(t, s.Snapshot().StateVectors, 3)
	assert.Equal(t, "feed", s.Snapshot().Source)
	assert.True(t, s.Loaded())
	assert.InDelta(t, 60, s.AgeSeconds(), 5)
}

func TestStoreReplaceParseErrorKeepsDataset(t *testing.T) {
	s := NewStore()
	_, err := s.Replace(loadFixture(t), "feed", time.Now())
	require.NoError(t, err)
	before := s.Snapshot()

	_, err = s.Replace([]byte("<ndm><oem></oem></ndm>"), "feed", time.Now())
	require.Error(t, err)
	assert.Same(t, before, s.Snapshot())
}

func TestStoreClear(t *testing.T) {
	s := NewStore()
	_, err := s.Replace(loadFixture(t), "feed", time.Now())
	require.NoError(t, err)
	before := s.Snapshot()

	cleared := s.Clear()
	assert.Same(t, cleared, s.Snapshot())
	assert.NotNil(t, cleared.StateVectors)
	assert.Empty(t, cleared.StateVectors)
	assert.Equal(t, before.Header, cleared.Header)
	assert.Equal(t, before.Metadata, cleared.Metadata)
	assert.Equal(t, before.Comments, cleared.Comments)

	// The previous snapshot is untouched for readers still holding it.
	assert.Len(t, before.StateVectors, 3)
}

func TestStoreConcurrentReadersSeeWholeDatasets(t *testing.T) {
	s := NewStore()
	raw := loadFixture(t)
	_, err := s.Replace(raw, "feed", time.Now())
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				n := len(s.Snapshot().StateVectors)
				if n != 0 && n != 3 {
					t.Errorf("observed torn dataset with %d state vectors", n)
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			s.Clear()
		} else if _, err := s.Replace(raw, "feed", time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}
