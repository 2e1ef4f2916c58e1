package selection_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/internal/orders"
	"github.com/tournevent/carrierhub/internal/selection"
	"github.com/tournevent/carrierhub/internal/store/kvstore"
	"github.com/tournevent/carrierhub/internal/telemetry"
	"github.com/tournevent/carrierhub/pkg/rules"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*kvstore.Store, *selection.Service, []*domain.Carrier) {
	t.Helper()
	ctx := context.Background()

	store, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var carriers []*domain.Carrier
	for _, name := range []string{"canadapost", "purolator", "freightcom"} {
		c := &domain.Carrier{Name: name, ShortName: name, Active: true}
		require.NoError(t, store.Carriers().Save(ctx, c))
		carriers = append(carriers, c)
	}

	provider := orders.NewStatic(domain.Order{
		ID:          100,
		ShopID:      1,
		ShopGroupID: 1,
		CountryID:   4,
		Weight:      2.5,
		ProductIDs:  []int64{10},
	})
	svc := selection.New(store, provider, otelzap.New(zap.NewNop()), telemetry.NewMetrics(prometheus.NewRegistry()))
	return store, svc, carriers
}

func ids(cs []domain.Carrier) []int64 {
	out := make([]int64, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestSelectForOrder_NoRules(t *testing.T) {
	_, svc, carriers := setup(t)

	got, err := svc.SelectForOrder(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{carriers[0].ID, carriers[1].ID, carriers[2].ID}, ids(got))
}

func TestSelectForOrder_AppliesRules(t *testing.T) {
	ctx := context.Background()
	store, svc, carriers := setup(t)
	other := int64(2)

	require.NoError(t, store.Rules().Save(ctx, &domain.ValidationRule{Rule: rules.Rule{
		Name:       "no purolator for product 10",
		Priority:   1,
		Active:     true,
		Conditions: rules.Conditions{ProductIDs: []int64{10}},
		Effects:    rules.Effects{DenyIDs: []int64{carriers[1].ID}, PreferIDs: []int64{carriers[2].ID}},
	}}))
	require.NoError(t, store.Rules().Save(ctx, &domain.ValidationRule{Rule: rules.Rule{
		Name:    "other shop only",
		Active:  true,
		Scope:   rules.Scope{ShopID: &other},
		Effects: rules.Effects{DenyIDs: []int64{carriers[0].ID}},
	}}))

	got, err := svc.SelectForOrder(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{carriers[2].ID, carriers[0].ID}, ids(got))
	assert.Equal(t, "freightcom", got[0].ShortName)
}

func TestSelectForOrder_SkipsInactiveCarriers(t *testing.T) {
	ctx := context.Background()
	store, svc, carriers := setup(t)
	carriers[0].Active = false
	require.NoError(t, store.Carriers().Save(ctx, carriers[0]))

	got, err := svc.SelectForOrder(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{carriers[1].ID, carriers[2].ID}, ids(got))
}

func TestSelectForOrder_OrderNotFound(t *testing.T) {
	_, svc, _ := setup(t)

	_, err := svc.SelectForOrder(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestSelectForOrder_EmptyResult(t *testing.T) {
	ctx := context.Background()
	store, svc, carriers := setup(t)
	require.NoError(t, store.Rules().Save(ctx, &domain.ValidationRule{Rule: rules.Rule{
		Name:    "nothing ships",
		Active:  true,
		Effects: rules.Effects{DenyIDs: []int64{carriers[0].ID, carriers[1].ID, carriers[2].ID}},
	}}))

	got, err := svc.SelectForOrder(ctx, 100)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
