package workflow

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orderdesk-cli/internal/assembler"
	"github.com/sells-group/orderdesk-cli/internal/catalog"
	"github.com/sells-group/orderdesk-cli/internal/ledger"
	"github.com/sells-group/orderdesk-cli/internal/model"
	"github.com/sells-group/orderdesk-cli/internal/resolver"
	"github.com/sells-group/orderdesk-cli/internal/store"
	"github.com/sells-group/orderdesk-cli/pkg/oracle"
)

type mockOracle struct {
	classification model.Classification
	classifyErr    error
	advice         string
	adviseErr      error
	response       string
	composeErr     error

	adviseCalled  bool
	composeInputs []oracle.ComposeInput
}

func (m *mockOracle) Classify(context.Context, model.Email) (model.Classification, model.TokenUsage, error) {
	return m.classification, model.TokenUsage{InputTokens: 100, OutputTokens: 20}, m.classifyErr
}

func (m *mockOracle) Advise(context.Context, model.Email, []string, []model.Candidate) (string, model.TokenUsage, error) {
	m.adviseCalled = true
	return m.advice, model.TokenUsage{InputTokens: 50, OutputTokens: 30}, m.adviseErr
}

func (m *mockOracle) Compose(_ context.Context, in oracle.ComposeInput) (string, model.TokenUsage, error) {
	m.composeInputs = append(m.composeInputs, in)
	return m.response, model.TokenUsage{InputTokens: 80, OutputTokens: 60}, m.composeErr
}

func newTestRouter(t *testing.T, oc oracle.Client, products []*model.Product) (*Router, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	idx := catalog.NewIndex(products)
	res := resolver.New(idx, resolver.DefaultConfig())
	asm := assembler.New(ledger.New(idx, ledger.DefaultConfig()), nil)
	return NewRouter(st, oc, res, asm), st
}

func testProducts() []*model.Product {
	return []*model.Product{
		{ID: "CBT8901", Name: "Chelsea Boots", Category: "Footwear", Price: 89.00, Stock: 10},
		{ID: "RSG8901", Name: "Retro Sunglasses", Category: "Accessories", Price: 26.10, Stock: 0},
	}
}

func TestProcess_OrderRequest(t *testing.T) {
	oc := &mockOracle{
		classification: model.Classification{
			HasOrder: true,
			Mentions: []model.Mention{{ProductID: "CBT8901", Quantity: 2}},
		},
		response: "Your boots are on the way!",
	}
	r, st := newTestRouter(t, oc, testProducts())

	result, err := r.Process(context.Background(), model.Email{RequestID: "E001", Body: "2 pairs of CBT8901"})
	require.NoError(t, err)

	assert.Equal(t, model.CategoryOrderRequest, result.Category)
	assert.Equal(t, "Your boots are on the way!", result.Response)
	require.NotNil(t, result.Order)
	assert.Equal(t, model.OrderStatusCreated, result.Order.Status)
	assert.Empty(t, result.Errors)
	assert.False(t, oc.adviseCalled)
	assert.Greater(t, result.TotalTokens, 0)

	// Compose saw the assembled order.
	require.Len(t, oc.composeInputs, 1)
	require.NotNil(t, oc.composeInputs[0].Order)
	assert.Len(t, oc.composeInputs[0].Order.Lines, 1)

	// Export rows persisted.
	reqs, err := st.ListRequestRows(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, model.CategoryOrderRequest, reqs[0].Category)

	lines, err := st.ListOrderLineRows(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "CBT8901", lines[0].ProductID)
	assert.Equal(t, model.LineStatusCreated, lines[0].Status)

	// Run persisted as complete.
	runs, err := st.ListRuns(context.Background(), store.RunFilter{RequestID: "E001"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
}

func TestProcess_InquiryOnly(t *testing.T) {
	oc := &mockOracle{
		classification: model.Classification{
			HasInquiry: true,
			Inquiries:  []string{"Do the boots run small?"},
		},
		advice:   "The boots fit true to size.",
		response: "Hi! The boots fit true to size.",
	}
	r, st := newTestRouter(t, oc, testProducts())

	result, err := r.Process(context.Background(), model.Email{RequestID: "E002", Body: "Do the boots run small?"})
	require.NoError(t, err)

	assert.Equal(t, model.CategoryProductInquiry, result.Category)
	assert.Nil(t, result.Order)
	assert.Equal(t, "The boots fit true to size.", result.Advice)
	assert.True(t, oc.adviseCalled)

	// No order, no line rows.
	lines, err := st.ListOrderLineRows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestProcess_MixedOrderAndInquiry(t *testing.T) {
	oc := &mockOracle{
		classification: model.Classification{
			HasOrder:   true,
			HasInquiry: true,
			Mentions:   []model.Mention{{ProductID: "CBT8901", Quantity: 1}},
			Inquiries:  []string{"Are they waterproof?"},
		},
		advice:   "They are water resistant, not waterproof.",
		response: "Order confirmed; they are water resistant.",
	}
	r, _ := newTestRouter(t, oc, testProducts())

	result, err := r.Process(context.Background(), model.Email{RequestID: "E003", Body: "one CBT8901, are they waterproof?"})
	require.NoError(t, err)

	// Orders win the category; both branches ran.
	assert.Equal(t, model.CategoryOrderRequest, result.Category)
	require.NotNil(t, result.Order)
	assert.True(t, oc.adviseCalled)
	assert.NotEmpty(t, result.Advice)
}

func TestProcess_ClassifyFailure(t *testing.T) {
	oc := &mockOracle{
		classifyErr: eris.New("model overloaded"),
		response:    "We received your message.",
	}
	r, st := newTestRouter(t, oc, testProducts())

	result, err := r.Process(context.Background(), model.Email{RequestID: "E004", Body: "???"})
	require.NoError(t, err)

	assert.Equal(t, model.CategoryUnknown, result.Category)
	assert.Contains(t, result.Errors, "classify")
	// Compose still runs; the customer gets a reply.
	assert.Equal(t, "We received your message.", result.Response)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{RequestID: "E004"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
}

func TestProcess_ComposeFailureUsesFallback(t *testing.T) {
	oc := &mockOracle{
		classification: model.Classification{
			HasOrder: true,
			Mentions: []model.Mention{{ProductID: "CBT8901", Quantity: 1}},
		},
		composeErr: eris.New("model overloaded"),
	}
	r, _ := newTestRouter(t, oc, testProducts())

	result, err := r.Process(context.Background(), model.Email{RequestID: "E005", Body: "one CBT8901"})
	require.NoError(t, err)

	assert.Equal(t, fallbackResponse, result.Response)
	assert.Contains(t, result.Errors, "compose")
	// The order still went through.
	require.NotNil(t, result.Order)
	assert.Equal(t, model.OrderStatusCreated, result.Order.Status)
}

func TestProcess_OutOfStockLineRows(t *testing.T) {
	oc := &mockOracle{
		classification: model.Classification{
			HasOrder: true,
			Mentions: []model.Mention{{ProductID: "RSG8901", Quantity: 1}},
		},
		response: "Sorry, those sunglasses are out of stock.",
	}
	r, st := newTestRouter(t, oc, testProducts())

	result, err := r.Process(context.Background(), model.Email{RequestID: "E006", Body: "RSG8901 please"})
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Equal(t, model.OrderStatusOutOfStock, result.Order.Status)

	lines, err := st.ListOrderLineRows(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, model.LineStatusOutOfStock, lines[0].Status)
}
