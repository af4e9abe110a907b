package selector

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/managedkaos/pull-request-analysis/internal/domain"
	"github.com/managedkaos/pull-request-analysis/internal/source/sourcetest"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func merged(id int64, resolvedDaysAgo int) domain.RawRecord {
	resolved := now.Add(-time.Duration(resolvedDaysAgo) * 24 * time.Hour)
	return domain.RawRecord{
		ID:         id,
		State:      domain.StateMerged,
		CreatedAt:  resolved.Add(-48 * time.Hour),
		ResolvedAt: &resolved,
	}
}

func open(id int64, createdDaysAgo int) domain.RawRecord {
	return domain.RawRecord{
		ID:        id,
		State:     domain.StateOpen,
		CreatedAt: now.Add(-time.Duration(createdDaysAgo) * 24 * time.Hour),
	}
}

func collect(t *testing.T, it iter.Seq2[domain.RawRecord, error]) ([]int64, error) {
	t.Helper()
	var ids []int64
	for rec, err := range it {
		if err != nil {
			return ids, err
		}
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

func TestSelectLimitDoesNotOverFetch(t *testing.T) {
	var records []domain.RawRecord
	for i := 10; i >= 1; i-- {
		records = append(records, merged(int64(i), 10-i))
	}
	pulled := 0

	ids, err := collect(t, Select(sourcetest.Seq(records, &pulled), Criteria{State: domain.StateMerged, Limit: 2, Now: now}))
	require.NoError(t, err)
	require.Equal(t, []int64{10, 9}, ids)
	require.Equal(t, 2, pulled)
}

func TestSelectWithoutLimitOrWindowReturnsEverything(t *testing.T) {
	records := []domain.RawRecord{merged(1, 400), merged(2, 1), merged(3, 90)}
	ids, err := collect(t, Select(sourcetest.Seq(records, nil), Criteria{State: domain.StateMerged, Now: now}))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, ids)
}

func TestSelectSkipsOtherStates(t *testing.T) {
	records := []domain.RawRecord{merged(1, 1), open(2, 1), merged(3, 1)}
	ids, err := collect(t, Select(sourcetest.Seq(records, nil), Criteria{State: domain.StateMerged, Now: now}))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, ids)
}

func TestSelectWindowUsesResolutionForFinishedRecords(t *testing.T) {
	old := merged(2, 40)
	// created long ago but merged yesterday: inside a 7 day window
	lateMerge := merged(3, 1)
	lateMerge.CreatedAt = now.Add(-60 * 24 * time.Hour)
	noResolution := domain.RawRecord{ID: 4, State: domain.StateMerged, CreatedAt: now}

	records := []domain.RawRecord{merged(1, 3), old, lateMerge, noResolution}
	ids, err := collect(t, Select(sourcetest.Seq(records, nil), Criteria{State: domain.StateMerged, Days: 7, Now: now}))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, ids)
}

func TestSelectWindowUsesCreationForOpenRecords(t *testing.T) {
	noCreated := domain.RawRecord{ID: 4, State: domain.StateOpen}
	records := []domain.RawRecord{open(1, 2), open(2, 30), noCreated, open(3, 7)}
	ids, err := collect(t, Select(sourcetest.Seq(records, nil), Criteria{State: domain.StateOpen, Days: 7, Now: now}))
	require.NoError(t, err)
	// exactly at the cutoff is kept
	require.Equal(t, []int64{1, 3}, ids)
}

func TestSelectLimitCountsOnlyMatches(t *testing.T) {
	records := []domain.RawRecord{open(1, 1), merged(2, 1), open(3, 1), merged(4, 1), merged(5, 1)}
	pulled := 0
	ids, err := collect(t, Select(sourcetest.Seq(records, &pulled), Criteria{State: domain.StateMerged, Limit: 2, Now: now}))
	require.NoError(t, err)
	require.Equal(t, []int64{2, 4}, ids)
	require.Equal(t, 4, pulled)
}

func TestSelectWindowStopsAtFirstRecordUpdatedBeforeCutoff(t *testing.T) {
	updated := func(rec domain.RawRecord, daysAgo int) domain.RawRecord {
		at := now.Add(-time.Duration(daysAgo) * 24 * time.Hour)
		rec.UpdatedAt = &at
		return rec
	}
	records := []domain.RawRecord{
		updated(merged(1, 1), 1),
		updated(open(2, 3), 2),
		updated(merged(3, 5), 5),
		updated(merged(4, 20), 20),
		updated(merged(5, 30), 30),
	}
	pulled := 0

	ids, err := collect(t, Select(sourcetest.Seq(records, &pulled), Criteria{
		State: domain.StateMerged, Limit: 100, Days: 7, Now: now,
	}))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, ids)
	require.Equal(t, 4, pulled)
}

func TestSelectWithoutWindowIgnoresUpdateTime(t *testing.T) {
	old := now.Add(-400 * 24 * time.Hour)
	rec := merged(1, 400)
	rec.UpdatedAt = &old
	records := []domain.RawRecord{rec, merged(2, 1)}

	ids, err := collect(t, Select(sourcetest.Seq(records, nil), Criteria{State: domain.StateMerged, Now: now}))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ids)
}

func TestSelectForwardsSourceError(t *testing.T) {
	boom := errors.New("boom")
	src := &sourcetest.Fake{
		Records:      []domain.RawRecord{merged(1, 1), merged(2, 1), merged(3, 1)},
		ListErrAfter: 2,
		ListErr:      boom,
	}

	ids, err := collect(t, Select(src.List(context.Background(), domain.StateMerged), Criteria{State: domain.StateMerged, Now: now}))
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int64{1, 2}, ids)
}

func TestCutoff(t *testing.T) {
	_, ok := Criteria{Now: now}.Cutoff()
	require.False(t, ok)

	cutoff, ok := Criteria{Now: now, Days: 2}.Cutoff()
	require.True(t, ok)
	require.Equal(t, now.Add(-48*time.Hour), cutoff)
}
