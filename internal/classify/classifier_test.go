package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Veraticus/spice-deduct/internal/classification"
	"github.com/Veraticus/spice-deduct/internal/common"
	"github.com/Veraticus/spice-deduct/internal/llm"
	"github.com/Veraticus/spice-deduct/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRules(t *testing.T) *classification.Rules {
	t.Helper()
	rules, err := classification.NewRules(classification.Config{
		KnownBars: []string{"bar", "soho house", "club"},
		Retailers: []classification.Retailer{
			{Pattern: "costco", Tier: model.Tier50},
			{Pattern: "sams club", Tier: model.Tier50},
		},
	})
	require.NoError(t, err)
	return rules
}

func testOptions() Options {
	return Options{
		Workers:       4,
		MaxAttempts:   3,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 5 * time.Millisecond,
		CallTimeout:   time.Second,
	}
}

func vendor(key, name string, descriptions ...string) model.VendorRecord {
	return model.VendorRecord{
		Key:              key,
		Name:             name,
		Location:         "New York, NY",
		Descriptions:     descriptions,
		TransactionCount: 1,
		TotalAmount:      decimal.NewFromInt(100),
		ExpenseIDs:       []int{1},
	}
}

func newTestClassifier(t *testing.T, client llm.Client, opts Options) *Classifier {
	t.Helper()
	c, err := New(client, testRules(t), opts, testLogger())
	require.NoError(t, err)
	return c
}

func TestClassify_Provenance(t *testing.T) {
	defer goleak.VerifyNone(t)

	teamPizza := vendor("pizza palace", "Pizza Palace", "Team lunch")
	teamPizza.TeamMeal = true

	tests := []struct {
		name           string
		vendor         model.VendorRecord
		reply          string
		wantTier       model.Tier
		wantProvenance model.Provenance
		wantModelTier  *model.Tier
		wantRule       string
		wantReview     bool
	}{
		{
			name:           "model answer is used as is",
			vendor:         vendor("luigis trattoria", "Luigi's Trattoria"),
			reply:          llm.StubJSON(model.Tier50, "italian restaurant", "high"),
			wantTier:       model.Tier50,
			wantProvenance: model.ProvenanceModel,
		},
		{
			name:           "low confidence needs review",
			vendor:         vendor("mystery co", "Mystery Co"),
			reply:          llm.StubJSON(model.Tier50, "probably food", "low"),
			wantTier:       model.Tier50,
			wantProvenance: model.ProvenanceModelUncertain,
			wantReview:     true,
		},
		{
			name:           "team meal tag beats model tier",
			vendor:         teamPizza,
			reply:          llm.StubJSON(model.Tier50, "pizza restaurant", "high"),
			wantTier:       model.Tier100,
			wantProvenance: model.ProvenanceOverrideTeamMeal,
			wantModelTier:  tierPtr(model.Tier50),
			wantRule:       "team_meal",
		},
		{
			name:           "retailer forced to configured tier",
			vendor:         vendor("costco wholesale", "COSTCO WHOLESALE #123"),
			reply:          llm.StubJSON(model.Tier0, "warehouse store", "high"),
			wantTier:       model.Tier50,
			wantProvenance: model.ProvenanceOverrideRetailer,
			wantModelTier:  tierPtr(model.Tier0),
			wantRule:       "retailer:costco",
		},
		{
			name:           "wholesale club is a retailer not a bar",
			vendor:         vendor("sams club", "Sam's Club"),
			reply:          llm.StubJSON(model.Tier0, "club", "high"),
			wantTier:       model.Tier50,
			wantProvenance: model.ProvenanceOverrideRetailer,
			wantModelTier:  tierPtr(model.Tier0),
			wantRule:       "retailer:sams club",
		},
		{
			name:           "known bar forced to zero",
			vendor:         vendor("soho house", "Soho House"),
			reply:          llm.StubJSON(model.Tier50, "members club with restaurant", "high"),
			wantTier:       model.Tier0,
			wantProvenance: model.ProvenanceOverrideKnownBar,
			wantModelTier:  tierPtr(model.Tier50),
			wantRule:       "known_bar:soho house",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := llm.NewStubClient().Script(tt.vendor.Key, llm.StubReply{Text: tt.reply})
			c := newTestClassifier(t, stub, testOptions())

			results, err := c.Classify(context.Background(), []model.VendorRecord{tt.vendor})
			require.NoError(t, err)
			require.Len(t, results, 1)

			got := results[0]
			assert.Equal(t, tt.wantTier, got.Tier)
			assert.Equal(t, tt.wantTier.Label(), got.Label)
			assert.Equal(t, tt.wantProvenance, got.Provenance)
			assert.Equal(t, tt.wantModelTier, got.ModelTier)
			assert.Equal(t, tt.wantRule, got.Rule)
			assert.Equal(t, tt.wantReview, got.NeedsReview)
			assert.Equal(t, tt.vendor.Name, got.VendorName)
			assert.Equal(t, 1, got.Attempts)
			assert.Equal(t, 1, stub.Calls(tt.vendor.Key))
		})
	}
}

func TestClassify_TimeoutFallsBack(t *testing.T) {
	defer goleak.VerifyNone(t)

	slow := vendor("slow diner", "Slow Diner")
	fast := vendor("quick cafe", "Quick Cafe")

	stub := llm.NewStubClient().
		Script(slow.Key, llm.StubReply{Delay: time.Minute}).
		Script(fast.Key, llm.StubReply{Text: llm.StubJSON(model.Tier50, "cafe", "high")})

	opts := testOptions()
	opts.MaxAttempts = 2
	opts.CallTimeout = 20 * time.Millisecond
	c := newTestClassifier(t, stub, opts)

	results, err := c.Classify(context.Background(), []model.VendorRecord{slow, fast})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byKey := map[string]model.ClassificationResult{}
	for _, r := range results {
		byKey[r.VendorKey] = r
	}

	got := byKey[slow.Key]
	assert.Equal(t, model.Tier0, got.Tier)
	assert.Equal(t, model.ProvenanceFallback, got.Provenance)
	assert.True(t, got.NeedsReview)
	assert.Nil(t, got.ModelTier)
	assert.Equal(t, 2, got.Attempts)
	assert.Contains(t, got.Rationale, "timed out")
	assert.Equal(t, 2, stub.Calls(slow.Key))

	assert.Equal(t, model.Tier50, byKey[fast.Key].Tier)
	assert.Equal(t, model.ProvenanceModel, byKey[fast.Key].Provenance)
}

func TestClassify_RetriesInvalidResponse(t *testing.T) {
	defer goleak.VerifyNone(t)

	v := vendor("flaky bistro", "Flaky Bistro")
	stub := llm.NewStubClient().Script(v.Key,
		llm.StubReply{Text: "I am not sure what this is."},
		llm.StubReply{Err: common.Transient(fmt.Errorf("status 503: %w", errors.New("unavailable")))},
		llm.StubReply{Text: llm.StubJSON(model.Tier50, "bistro", "high")},
	)
	c := newTestClassifier(t, stub, testOptions())

	results, err := c.Classify(context.Background(), []model.VendorRecord{v})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.Tier50, results[0].Tier)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, model.ProvenanceModel, results[0].Provenance)
}

func TestClassify_ExhaustedRetriesWithOverride(t *testing.T) {
	defer goleak.VerifyNone(t)

	v := vendor("costco", "Costco")
	stub := llm.NewStubClient().Script(v.Key, llm.StubReply{Err: common.Transient(common.ErrRateLimit)})
	c := newTestClassifier(t, stub, testOptions())

	results, err := c.Classify(context.Background(), []model.VendorRecord{v})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.Tier50, results[0].Tier)
	assert.Equal(t, model.ProvenanceOverrideRetailer, results[0].Provenance)
	assert.Nil(t, results[0].ModelTier)
	assert.False(t, results[0].NeedsReview)
}

func TestClassify_PermanentErrorIsFatal(t *testing.T) {
	defer goleak.VerifyNone(t)

	vendors := []model.VendorRecord{
		vendor("a cafe", "A Cafe"),
		vendor("b diner", "B Diner"),
		vendor("c grill", "C Grill"),
	}
	stub := llm.NewStubClient().Script("b diner", llm.StubReply{
		Err: common.Permanent(errors.New("status 401: invalid api key")),
	})
	c := newTestClassifier(t, stub, testOptions())

	results, err := c.Classify(context.Background(), vendors)
	require.Error(t, err)
	assert.Nil(t, results)

	var stageErr *common.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, Stage, stageErr.Stage)
	assert.Equal(t, "B Diner", stageErr.Vendor)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, 1, stub.Calls("b diner"))
}

func TestClassify_ParentCancellationAborts(t *testing.T) {
	defer goleak.VerifyNone(t)

	vendors := []model.VendorRecord{vendor("slow one", "Slow One"), vendor("slow two", "Slow Two")}
	stub := llm.NewStubClient().
		Script("slow one", llm.StubReply{Delay: time.Minute}).
		Script("slow two", llm.StubReply{Delay: time.Minute})
	c := newTestClassifier(t, stub, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := c.Classify(ctx, vendors)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassify_OneResultPerVendorSorted(t *testing.T) {
	defer goleak.VerifyNone(t)

	var vendors []model.VendorRecord
	for i := 30; i > 0; i-- {
		key := fmt.Sprintf("vendor %02d", i)
		vendors = append(vendors, vendor(key, key))
	}

	stub := llm.NewStubClient()
	for i, v := range vendors {
		stub.Script(v.Key, llm.StubReply{
			Delay: time.Duration(i%5) * time.Millisecond,
			Text:  llm.StubJSON(model.Tier50, "restaurant", "high"),
		})
	}

	var progressed atomic.Int64
	opts := testOptions()
	opts.Progress = func(done, total int) {
		assert.Equal(t, 30, total)
		progressed.Add(1)
	}
	c := newTestClassifier(t, stub, opts)

	results, err := c.Classify(context.Background(), vendors)
	require.NoError(t, err)
	require.Len(t, results, len(vendors))
	assert.Equal(t, int64(30), progressed.Load())
	assert.Equal(t, 30, stub.TotalCalls())

	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("vendor %02d", i+1), r.VendorKey)
	}
}

func TestClassify_Errors(t *testing.T) {
	c := newTestClassifier(t, llm.NewStubClient(), testOptions())

	_, err := c.Classify(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrNoVendors)

	dup := []model.VendorRecord{vendor("joes bar", "Joe's Bar"), vendor("joes bar", "JOES BAR")}
	_, err = c.Classify(context.Background(), dup)
	assert.ErrorIs(t, err, common.ErrClassificationFailed)

	_, err = New(nil, nil, Options{}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func tierPtr(t model.Tier) *model.Tier {
	return &t
}
