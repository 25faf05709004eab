package journal

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

var (
	account = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	token   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func added(amount uint64) domain.Event {
	return domain.NewInvestmentAddedEvent(time.Unix(1_700_000_000, 0).UTC(), domain.InvestmentAdded{
		Account: account,
		Token:   token,
		Amount:  uint256.NewInt(amount),
		Period:  30,
	})
}

func removed(fraction uint16) domain.Event {
	return domain.NewInvestmentRemovedEvent(time.Unix(1_700_000_100, 0).UTC(), domain.InvestmentRemoved{
		Account:  account,
		Token:    token,
		Fraction: fraction,
	})
}

func TestWALStore_SaveAndRead(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.Zero(t, store.CurrentIndex())

	first, err := store.Save(added(101))
	require.NoError(t, err)
	second, err := store.Save(removed(2500))
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
	assert.Equal(t, second, store.CurrentIndex())

	records, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, first, records[0].Index)
	assert.Equal(t, domain.EventInvestmentAdded, records[0].Event.Kind)
	require.NotNil(t, records[0].Event.Added)
	assert.Equal(t, uint64(101), records[0].Event.Added.Amount.Uint64())
	assert.Equal(t, account, records[0].Event.Added.Account)

	assert.Equal(t, domain.EventInvestmentRemoved, records[1].Event.Kind)
	require.NotNil(t, records[1].Event.Removed)
	assert.Equal(t, uint16(2500), records[1].Event.Removed.Fraction)

	tail, err := store.EventsAfter(first)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, second, tail[0].Index)

	none, err := store.EventsAfter(second)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWALStore_ResumesAfterReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	idx, err := store.Save(added(5))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, idx, reopened.CurrentIndex())
	next, err := reopened.Save(removed(10000))
	require.NoError(t, err)
	assert.Equal(t, idx+1, next)

	records, err := reopened.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(5), records[0].Event.Added.Amount.Uint64())
}

func TestWALStore_RejectsEmptyEvent(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Save(domain.Event{ID: "x", Kind: domain.EventInvestmentAdded})
	require.Error(t, err)
	assert.Zero(t, store.CurrentIndex())
}

func TestWALStore_NilStore(t *testing.T) {
	var store *WALStore

	_, err := store.Save(added(1))
	require.Error(t, err)
	_, err = store.EventsAfter(0)
	require.Error(t, err)
	assert.Zero(t, store.CurrentIndex())
	require.Error(t, store.Close())
}

// trimmedLog keeps entries in memory and drops everything below floor, the way old segments go.
type trimmedLog struct {
	keys   map[uint64]string
	values map[uint64][]byte
	last   uint64
	floor  uint64
	gets   []uint64
}

func newTrimmedLog() *trimmedLog {
	return &trimmedLog{keys: map[uint64]string{}, values: map[uint64][]byte{}, floor: 1}
}

func (l *trimmedLog) Write(index uint64, key string, value []byte) error {
	l.keys[index], l.values[index], l.last = key, value, index
	return nil
}

func (l *trimmedLog) Get(index uint64) (string, []byte, error) {
	l.gets = append(l.gets, index)
	if index < l.floor || index > l.last {
		return "", nil, errors.Errorf("index %d not found", index)
	}
	return l.keys[index], l.values[index], nil
}

func (l *trimmedLog) CurrentIndex() uint64 { return l.last }
func (l *trimmedLog) Close() error { return nil }

func TestWALStore_SkipsEvictedSegments(t *testing.T) {
	log := newTrimmedLog()
	store := newStore(log)

	for i := uint64(1); i <= 20; i++ {
		_, err := store.Save(added(i))
		require.NoError(t, err)
	}
	log.floor = 15

	records, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, uint64(15), records[0].Index)
	assert.Equal(t, uint64(20), records[5].Index)
	assert.Equal(t, uint64(15), store.first.Load())

	// later reads start at the first retained index
	log.gets = nil
	records, err = store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, []uint64{15, 16, 17, 18, 19, 20}, log.gets)

	log.gets = nil
	records, err = store.EventsAfter(18)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []uint64{19, 20}, log.gets)

	// a poll from inside the evicted range does not touch it
	log.gets = nil
	_, err = store.EventsAfter(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), log.gets[0])
}
