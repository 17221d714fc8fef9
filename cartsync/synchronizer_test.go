package cartsync

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCart is a backend cart held in memory; writes to keys in failOn fail
type memoryCart struct {
	lines    map[models.LineKey]models.CartLine
	calls    []string
	failOn   map[models.LineKey]bool
	fetchErr error
}

func newMemoryCart(lines ...models.CartLine) *memoryCart {
	c := &memoryCart{lines: make(map[models.LineKey]models.CartLine), failOn: make(map[models.LineKey]bool)}
	for _, l := range lines {
		c.lines[l.Key()] = l
	}
	return c
}

func (c *memoryCart) GetCart(ctx context.Context) ([]models.CartLine, error) {
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	out := make([]models.CartLine, 0, len(c.lines))
	for _, l := range c.lines {
		out = append(out, l)
	}
	return out, nil
}

func (c *memoryCart) AddCartItem(ctx context.Context, line models.CartLine) error {
	c.calls = append(c.calls, "add "+line.Key().String())
	if c.failOn[line.Key()] {
		return errors.New("backend rejected line")
	}
	if _, ok := c.lines[line.Key()]; ok {
		return errors.New("line already present")
	}
	c.lines[line.Key()] = line
	return nil
}

func (c *memoryCart) UpdateCartItem(ctx context.Context, line models.CartLine) error {
	c.calls = append(c.calls, "update "+line.Key().String())
	if c.failOn[line.Key()] {
		return errors.New("backend rejected line")
	}
	existing, ok := c.lines[line.Key()]
	if !ok {
		return errors.New("no such line")
	}
	existing.Quantity = line.Quantity
	c.lines[line.Key()] = existing
	return nil
}

func line(product, variant string, qty int) models.CartLine {
	return models.CartLine{ProductID: product, VariantID: variant, Quantity: qty, UnitPrice: decimal.NewFromInt(100)}
}

func assertMatchesLocal(t *testing.T, remote *memoryCart, local []models.CartLine) {
	t.Helper()
	for _, l := range local {
		got, ok := remote.lines[l.Key()]
		require.True(t, ok, "missing %s", l.Key())
		assert.Equal(t, l.Quantity, got.Quantity, "quantity for %s", l.Key())
	}
}

func TestSync_EmptyRemote(t *testing.T) {
	remote := newMemoryCart()
	local := []models.CartLine{line("A", "", 2), line("B", "red", 1)}

	report, err := NewSynchronizer(remote, nil).Sync(context.Background(), local)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 0, report.Updated)
	assertMatchesLocal(t, remote, local)
}

func TestSync_PartialOverlap(t *testing.T) {
	remote := newMemoryCart(line("A", "", 1), line("B", "red", 1))
	local := []models.CartLine{line("A", "", 3), line("B", "red", 1), line("C", "", 5)}

	report, err := NewSynchronizer(remote, nil).Sync(context.Background(), local)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, []string{"update A:default", "add C:default"}, remote.calls)
	assertMatchesLocal(t, remote, local)
}

func TestSync_RemoteSupersetIsNotDeleted(t *testing.T) {
	remote := newMemoryCart(line("A", "", 2), line("Z", "", 4))
	local := []models.CartLine{line("A", "", 2)}

	report, err := NewSynchronizer(remote, nil).Sync(context.Background(), local)

	require.NoError(t, err)
	assert.Empty(t, remote.calls)
	assert.Equal(t, 1, report.Unchanged)
	assert.Contains(t, remote.lines, models.LineKey{ProductID: "Z", VariantID: models.DefaultVariant})
}

func TestSync_VariantsAreDistinctLines(t *testing.T) {
	remote := newMemoryCart(line("A", "small", 1))
	local := []models.CartLine{line("A", "small", 1), line("A", "large", 2), line("A", "", 1)}

	report, err := NewSynchronizer(remote, nil).Sync(context.Background(), local)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
	assertMatchesLocal(t, remote, local)
}

func TestSync_VariantBlind(t *testing.T) {
	remote := newMemoryCart(line("A", "", 1))
	s := NewSynchronizer(remote, nil)
	s.VariantAware = false

	ops, _ := s.Plan([]models.CartLine{line("A", "blue", 4)}, []models.CartLine{line("A", "", 1)})

	require.Len(t, ops, 1)
	assert.Equal(t, OpUpdate, ops[0].Kind)
}

func TestSync_FailOpenContinuesPastFailedLine(t *testing.T) {
	remote := newMemoryCart()
	remote.failOn[models.LineKey{ProductID: "B", VariantID: models.DefaultVariant}] = true
	local := []models.CartLine{line("A", "", 1), line("B", "", 1), line("C", "", 1)}

	report, err := NewSynchronizer(remote, nil).Sync(context.Background(), local)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "B", report.Failures[0].ProductID)
	assert.Equal(t, "add", report.Failures[0].Operation)
	assert.Equal(t, []string{"add A:default", "add B:default", "add C:default"}, remote.calls)
}

func TestSync_FailClosedStops(t *testing.T) {
	remote := newMemoryCart()
	remote.failOn[models.LineKey{ProductID: "A", VariantID: models.DefaultVariant}] = true
	s := NewSynchronizer(remote, nil)
	s.Policy = FailClosed

	_, err := s.Sync(context.Background(), []models.CartLine{line("A", "", 1), line("B", "", 1)})

	var failure *models.SyncFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, []string{"add A:default"}, remote.calls)
}

func TestSync_FetchFailureSkips(t *testing.T) {
	remote := newMemoryCart()
	remote.fetchErr = errors.New("connection refused")

	report, err := NewSynchronizer(remote, nil).Sync(context.Background(), []models.CartLine{line("A", "", 1)})

	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Empty(t, remote.calls)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "fetch", report.Failures[0].Operation)
}

func TestPlan_MergesDuplicatesAndRejectsInvalid(t *testing.T) {
	s := NewSynchronizer(nil, nil)
	ops, failures := s.Plan([]models.CartLine{line("A", "", 1), line("A", "default", 2), line("B", "", 0), line("", "", 1)}, nil)

	require.Len(t, ops, 1)
	assert.Equal(t, 3, ops[0].Line.Quantity)
	assert.Len(t, failures, 2)
}

func TestSync_MatchesLocalForAnyInitialRemote(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	products := []string{"A", "B", "C", "D"}
	variants := []string{"", "red", "blue"}

	for i := 0; i < 200; i++ {
		var remoteLines, local []models.CartLine
		seen := make(map[models.LineKey]bool)
		for _, p := range products {
			for _, v := range variants {
				l := line(p, v, 1+rng.Intn(5))
				switch rng.Intn(3) {
				case 0:
					remoteLines = append(remoteLines, l)
				case 1:
					if !seen[l.Key()] {
						local = append(local, line(p, v, 1+rng.Intn(5)))
						seen[l.Key()] = true
					}
					remoteLines = append(remoteLines, l)
				default:
					if !seen[l.Key()] {
						local = append(local, l)
						seen[l.Key()] = true
					}
				}
			}
		}

		remote := newMemoryCart(remoteLines...)
		before := len(remote.lines)
		_, err := NewSynchronizer(remote, nil).Sync(context.Background(), local)

		require.NoError(t, err)
		assertMatchesLocal(t, remote, local)
		assert.GreaterOrEqual(t, len(remote.lines), before)
	}
}
