package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierhub/internal/catalog"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/internal/store/kvstore"
	"github.com/tournevent/carrierhub/pkg/rules"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*catalog.Service, *kvstore.Store) {
	t.Helper()
	store, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return catalog.New(store, otelzap.New(zap.NewNop())), store
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var derr *domain.Error
	require.True(t, errors.As(err, &derr), "not a domain error: %v", err)
	out := make([]string, len(derr.Fields))
	for i, f := range derr.Fields {
		out[i] = f.Field + ":" + f.Rule
	}
	return out
}

func TestSaveCarrier_ReportsEveryField(t *testing.T) {
	svc, _ := newService(t)

	err := svc.SaveCarrier(context.Background(), &domain.Carrier{
		ShopIDs: []int64{1, -2},
		Config:  domain.ConfigEntries{{Value: "x"}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidConfigurationData)
	assert.ElementsMatch(t, []string{
		"name:required",
		"short_name:required",
		"shop_ids[1]:gt",
		"config[0].key:required",
	}, fieldsOf(t, err))
}

func TestSaveCarrier_NormalizesShortName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	c := &domain.Carrier{Name: "Canada Post", ShortName: " CanadaPost ", Active: true}
	require.NoError(t, svc.SaveCarrier(ctx, c))

	got, err := svc.Carrier(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "canadapost", got.ShortName)
}

func TestSaveTypeShipment_ReferenceConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	c := &domain.Carrier{Name: "Purolator", ShortName: "purolator", Active: true}
	require.NoError(t, svc.SaveCarrier(ctx, c))

	first := &domain.TypeShipment{CarrierID: c.ID, Name: "Express", BusinessCode: "PurolatorExpress", ReferenceCarrierID: 7, Active: true}
	require.NoError(t, svc.SaveTypeShipment(ctx, first))

	second := &domain.TypeShipment{CarrierID: c.ID, Name: "Ground", BusinessCode: "PurolatorGround", ReferenceCarrierID: 7, Active: true}
	assert.ErrorIs(t, svc.SaveTypeShipment(ctx, second), domain.ErrTypeShipmentCarrierConflict)

	second.Active = false
	require.NoError(t, svc.SaveTypeShipment(ctx, second))

	first.Name = "Express 9AM"
	assert.NoError(t, svc.SaveTypeShipment(ctx, first))

	require.NoError(t, svc.RemoveTypeShipment(ctx, first.ID))
	second.Active = true
	assert.NoError(t, svc.SaveTypeShipment(ctx, second))
}

func TestSaveTypeShipment_UnknownCarrier(t *testing.T) {
	svc, _ := newService(t)

	err := svc.SaveTypeShipment(context.Background(), &domain.TypeShipment{
		CarrierID: 99, Name: "x", BusinessCode: "X", ReferenceCarrierID: 1,
	})
	assert.ErrorIs(t, err, domain.ErrCarrierNotFound)
}

func TestSaveTypeShipment_Invalid(t *testing.T) {
	svc, _ := newService(t)

	err := svc.SaveTypeShipment(context.Background(), &domain.TypeShipment{})
	require.ErrorIs(t, err, domain.ErrInvalidConfigurationData)
	assert.ElementsMatch(t, []string{
		"carrier_id:required",
		"name:required",
		"business_code:required",
		"reference_carrier_id:required",
	}, fieldsOf(t, err))
}

func TestRemoveCarrier_CascadesToTypeShipments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	c := &domain.Carrier{Name: "Freightcom", ShortName: "freightcom", Active: true}
	require.NoError(t, svc.SaveCarrier(ctx, c))
	for i, code := range []string{"LTL", "FTL"} {
		require.NoError(t, svc.SaveTypeShipment(ctx, &domain.TypeShipment{
			CarrierID: c.ID, Name: code, BusinessCode: code, ReferenceCarrierID: int64(20 + i), Active: true,
		}))
	}

	require.NoError(t, svc.RemoveCarrier(ctx, c.ID))

	_, err := svc.Carrier(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrCarrierNotFound)
	owned, err := svc.TypeShipments(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, owned)

	assert.ErrorIs(t, svc.RemoveCarrier(ctx, c.ID), domain.ErrCarrierNotFound)
}

func TestConfigurationEntry(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	c := &domain.Carrier{
		Name:      "Canada Post",
		ShortName: "canadapost",
		Config:    domain.ConfigEntries{{Key: "api_key", Value: "k", Required: true}},
	}
	require.NoError(t, svc.SaveCarrier(ctx, c))

	entry, err := svc.ConfigurationEntry(ctx, c.ID, "api_key")
	require.NoError(t, err)
	assert.Equal(t, "k", entry.Value)
	assert.True(t, entry.Required)

	_, err = svc.ConfigurationEntry(ctx, c.ID, "api_secret")
	assert.ErrorIs(t, err, domain.ErrCarrierConfigurationNotFound)

	_, err = svc.ConfigurationEntry(ctx, 404, "api_key")
	assert.ErrorIs(t, err, domain.ErrCarrierNotFound)

	ts := &domain.TypeShipment{
		CarrierID: c.ID, Name: "Expedited", BusinessCode: "DOM.EP", ReferenceCarrierID: 3,
		Config: domain.ConfigEntries{{Key: "label_format", Value: "zpl"}},
	}
	require.NoError(t, svc.SaveTypeShipment(ctx, ts))
	entry, err = svc.TypeShipmentConfigurationEntry(ctx, ts.ID, "label_format")
	require.NoError(t, err)
	assert.Equal(t, "zpl", entry.Value)
	_, err = svc.TypeShipmentConfigurationEntry(ctx, ts.ID, "api_key")
	assert.ErrorIs(t, err, domain.ErrCarrierConfigurationNotFound)
}

func TestSaveRule_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	lo, hi := 5.0, 1.0

	err := svc.SaveRule(ctx, &domain.ValidationRule{Rule: rules.Rule{
		Priority:   -1,
		Conditions: rules.Conditions{MinWeight: &lo, MaxWeight: &hi},
	}})
	require.ErrorIs(t, err, domain.ErrInvalidConfigurationData)
	assert.ElementsMatch(t, []string{
		"Rule.name:required",
		"Rule.priority:gte",
		"Rule.max_weight:gtefield",
	}, fieldsOf(t, err))

	r := &domain.ValidationRule{Rule: rules.Rule{Name: "heavy", Active: true, Effects: rules.Effects{DenyIDs: []int64{3}}}}
	require.NoError(t, svc.SaveRule(ctx, r))
	got, err := svc.Rule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "heavy", got.Name)

	require.NoError(t, svc.RemoveRule(ctx, r.ID))
	_, err = svc.Rule(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrValidationRuleNotFound)
}

func TestSaveInfoPackage_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	err := svc.SaveInfoPackage(ctx, &domain.InfoPackage{Weight: -1, HourFrom: "25:99"})
	require.ErrorIs(t, err, domain.ErrInvalidConfigurationData)
	assert.ElementsMatch(t, []string{
		"order_id:required",
		"reference_carrier_id:required",
		"weight:gte",
		"hour_from:datetime",
	}, fieldsOf(t, err))

	p := &domain.InfoPackage{OrderID: 100, ReferenceCarrierID: 7, Quantity: 1, Weight: 2, HourFrom: "09:00"}
	require.NoError(t, svc.SaveInfoPackage(ctx, p))
	got, err := svc.InfoPackage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", got.HourFrom)
}

func TestLogEntries(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	require.NoError(t, store.Logs().Append(ctx, &domain.LogEntry{Name: domain.LogShipmentCreated, OrderID: 100}))
	e := &domain.LogEntry{Name: domain.LogShipmentFailed, OrderID: 100, Error: "timeout"}
	require.NoError(t, store.Logs().Append(ctx, e))

	got, err := svc.LogEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "timeout", got.Error)

	list, err := svc.LogEntries(ctx, domain.LogFilter{OrderID: 100})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, e.ID, list[0].ID)

	_, err = svc.LogEntry(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrLogEntryNotFound)
}
