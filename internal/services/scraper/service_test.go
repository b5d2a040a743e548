package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/services/normalize"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, ticker string) ([]byte, error) {
	args := m.Called(ctx, ticker)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func quoteHTML(company string) []byte {
	return []byte(`<html><body><a class="tab-link">` + company + `</a>
<table class="snapshot-table2"><tr>
<td>P/E</td><td><b>24.10</b></td>
<td>Volatility</td><td><b>2.00% 3.00%</b></td>
</tr></table></body></html>`)
}

type sleepRecorder struct {
	calls []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

func newTestService(f *mockFetcher, rec *sleepRecorder) *Service {
	return NewService(f, normalize.NewDefaultSplitter(), arbor.NewLogger(),
		WithDelay(2*time.Second),
		WithSleeper(rec.sleep),
	)
}

func TestScrapeMany_SkipVersusFail(t *testing.T) {
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, "AAA").Return(quoteHTML("Alpha Corp"), nil)
	f.On("Fetch", mock.Anything, "AFF").Return(quoteHTML(models.AffiliateCompanyName), nil)
	f.On("Fetch", mock.Anything, "ERR").Return(nil, errors.New("connection reset"))
	f.On("Fetch", mock.Anything, "BBB").Return(quoteHTML("Beta Corp"), nil)

	rec := &sleepRecorder{}
	s := newTestService(f, rec)

	result, err := s.ScrapeMany(context.Background(), []string{"AAA", "AFF", "ERR", "BBB"})
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, "AAA", result.Records[0].Ticker)
	assert.Equal(t, "Alpha Corp", result.Records[0].CompanyName)
	assert.Equal(t, "BBB", result.Records[1].Ticker)

	assert.Equal(t, []string{"AFF"}, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 4, result.Total)
	assert.NotEmpty(t, result.RunID)

	for _, r := range result.Records {
		assert.NotEqual(t, "ERR", r.Ticker)
		assert.NotEqual(t, "AFF", r.Ticker)
	}

	// no pause after the last ticker
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, rec.calls)
	f.AssertExpectations(t)
}

func TestScrapeMany_NormalizesCompoundCells(t *testing.T) {
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, "AAA").Return(quoteHTML("Alpha Corp"), nil)

	rec := &sleepRecorder{}
	s := newTestService(f, rec)

	result, err := s.ScrapeMany(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	r := result.Records[0]
	assert.Equal(t, models.Float(24.10), r.Get("p_e"))
	assert.InDelta(t, 0.02, r.Get("volatility_week").Float, 1e-12)
	assert.InDelta(t, 0.03, r.Get("volatility_month").Float, 1e-12)
	assert.Empty(t, rec.calls)
}

func TestScrapeMany_NoTickers(t *testing.T) {
	s := newTestService(&mockFetcher{}, &sleepRecorder{})

	_, err := s.ScrapeMany(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoTickers)
}

func TestScrapeMany_KeepsDuplicates(t *testing.T) {
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, "AAA").Return(quoteHTML("Alpha Corp"), nil).Twice()

	s := newTestService(f, &sleepRecorder{})
	result, err := s.ScrapeMany(context.Background(), []string{"AAA", "AAA"})
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	f.AssertExpectations(t)
}

func TestScrapeMany_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, "AAA").Return(quoteHTML("Alpha Corp"), nil).Run(func(mock.Arguments) {
		cancel()
	})

	s := newTestService(f, &sleepRecorder{})
	result, err := s.ScrapeMany(ctx, []string{"AAA", "BBB"})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Len(t, result.Records, 1)
	f.AssertNotCalled(t, "Fetch", mock.Anything, "BBB")
}

func TestScrapeOne_Affiliate(t *testing.T) {
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, "AFF").Return(quoteHTML(models.AffiliateCompanyName), nil)

	s := newTestService(f, &sleepRecorder{})
	_, err := s.ScrapeOne(context.Background(), "AFF")
	assert.ErrorIs(t, err, ErrAffiliate)
}
