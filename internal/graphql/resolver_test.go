package graphql_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierhub/internal/catalog"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/internal/graphql"
	"github.com/tournevent/carrierhub/internal/labels"
	"github.com/tournevent/carrierhub/internal/orders"
	"github.com/tournevent/carrierhub/internal/selection"
	"github.com/tournevent/carrierhub/internal/shipment"
	"github.com/tournevent/carrierhub/internal/store/kvstore"
	"github.com/tournevent/carrierhub/internal/telemetry"
	"github.com/tournevent/carrierhub/pkg/rules"
	"github.com/tournevent/carrierhub/pkg/shipper"
	"github.com/tournevent/carrierhub/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type testEnv struct {
	resolver *graphql.Resolver
	store    *kvstore.Store
	carrier  *domain.Carrier
}

// setupTestResolver stores carrier "mock" mapped from reference carrier 7 and
// info package 42 of order 100.
func setupTestResolver(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := kvstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := otelzap.New(zap.NewNop())
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	orderProvider := orders.NewStatic(domain.Order{
		ID:        100,
		Reference: "XKBKNABJK",
		ShopID:    1,
		Weight:    4,
		Currency:  "CAD",
		Recipient: shipper.Address{Name: "Jane Doe", City: "Vancouver", CountryCode: "CA"},
	})
	registry := shipper.NewRegistry(mock.New("mock"))

	cat := catalog.New(store, logger)
	env := &testEnv{store: store}
	env.carrier = &domain.Carrier{Name: "Mock Express", ShortName: "mock", Active: true}
	require.NoError(t, cat.SaveCarrier(ctx, env.carrier))
	require.NoError(t, cat.SaveCarrier(ctx, &domain.Carrier{Name: "Freight", ShortName: "freightcom", Active: true, ShopIDs: []int64{2}}))
	require.NoError(t, cat.SaveTypeShipment(ctx, &domain.TypeShipment{
		CarrierID: env.carrier.ID, Name: "Express", BusinessCode: "EXP", ReferenceCarrierID: 7, Active: true,
	}))
	require.NoError(t, cat.SaveInfoPackage(ctx, &domain.InfoPackage{
		ID: 42, OrderID: 100, ShopID: 1, ReferenceCarrierID: 7, Quantity: 1, Weight: 2,
	}))

	gen := shipment.New(store, orderProvider, registry, logger, shipment.Config{}, shipment.WithMetrics(metrics))
	env.resolver = graphql.NewResolver(
		gen,
		selection.New(store, orderProvider, logger, metrics),
		cat,
		labels.New(store.Labels()),
		logger,
		metrics,
	)
	return env
}

func (e *testEnv) exec(t *testing.T, query string, vars map[string]any) *graphql.Response {
	t.Helper()
	return e.resolver.Execute(context.Background(), graphql.Request{Query: query, Variables: vars})
}

func data(resp *graphql.Response) map[string]any {
	if resp.Data == nil {
		return nil
	}
	return graphql.Plain(resp.Data).(map[string]any)
}

func TestQuery_Health(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `{ health }`, nil)

	require.Empty(t, resp.Errors)
	assert.Equal(t, true, data(resp)["health"])
}

func TestQuery_Carriers(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `query($shop: Int) { carriers(shopId: $shop) { shortName } }`, map[string]any{"shop": int64(1)})

	require.Empty(t, resp.Errors)
	assert.Equal(t, []any{map[string]any{"shortName": "mock"}}, data(resp)["carriers"])
}

func TestQuery_SelectCarriers(t *testing.T) {
	env := setupTestResolver(t)
	require.NoError(t, env.resolver.Catalog.SaveRule(context.Background(), &domain.ValidationRule{Rule: rules.Rule{
		Name:    "no mock",
		Active:  true,
		Effects: rules.Effects{DenyIDs: []int64{env.carrier.ID}},
	}}))

	resp := env.exec(t, `{ selectCarriers(orderId: 100) { id } }`, nil)

	require.Empty(t, resp.Errors)
	assert.Equal(t, []any{}, data(resp)["selectCarriers"])
}

func TestQuery_SelectCarriers_OrderNotFound(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `{ selectCarriers(orderId: 404) { id } }`, nil)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, domain.ErrOrderNotFound.Code, resp.Errors[0].Extensions["code"])
	assert.Nil(t, data(resp)["selectCarriers"])
}

func TestMutation_GenerateShipment(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `mutation($pkg: Int!) {
		generateShipment(infoPackageId: $pkg, shopId: 1) {
			shipmentNumber
			product
			labels { trackerCode url printed }
		}
	}`, map[string]any{"pkg": int64(42)})

	require.Empty(t, resp.Errors)
	got := data(resp)["generateShipment"].(map[string]any)
	assert.Equal(t, "MOCK0000000042", got["shipmentNumber"])
	assert.Equal(t, "EXP", got["product"])
	ls := got["labels"].([]any)
	require.NotEmpty(t, ls)
	first := ls[0].(map[string]any)
	assert.Regexp(t, `^/shipments/\d+/labels/\d+$`, first["url"])
	assert.Equal(t, false, first["printed"])
}

func TestMutation_GenerateShipment_AlreadyExists(t *testing.T) {
	env := setupTestResolver(t)
	const q = `mutation { generateShipment(infoPackageId: 42) { id } }`

	require.Empty(t, env.exec(t, q, nil).Errors)
	resp := env.exec(t, q, nil)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, domain.ErrShipmentAlreadyExists.Code, resp.Errors[0].Extensions["code"])
	assert.Equal(t, string(domain.KindConflict), resp.Errors[0].Extensions["kind"])
	assert.Equal(t, "generateShipment", resp.Errors[0].Path.String())
}

func TestMutation_DeleteShipmentThenQuery(t *testing.T) {
	env := setupTestResolver(t)
	created := env.exec(t, `mutation { generateShipment(infoPackageId: 42) { id } }`, nil)
	require.Empty(t, created.Errors)
	id := data(created)["generateShipment"].(map[string]any)["id"]

	resp := env.exec(t, `query($id: Int!) { shipment(id: $id) { shipmentNumber labels { id } } }`, map[string]any{"id": id})
	require.Empty(t, resp.Errors)
	assert.NotNil(t, data(resp)["shipment"])

	resp = env.exec(t, `mutation($id: Int!) { deleteShipment(id: $id) }`, map[string]any{"id": id})
	require.Empty(t, resp.Errors)
	assert.Equal(t, true, data(resp)["deleteShipment"])

	resp = env.exec(t, `query($id: Int!) { shipment(id: $id) { id } }`, map[string]any{"id": id})
	require.Empty(t, resp.Errors)
	assert.Nil(t, data(resp)["shipment"])
}

func TestQuery_Labels_Missing(t *testing.T) {
	env := setupTestResolver(t)
	ctx := context.Background()
	sh := &domain.Shipment{OrderID: 100, InfoPackageID: 42, CompanyID: env.carrier.ID, ShipmentNumber: "X1"}
	require.NoError(t, env.store.Shipments().Create(ctx, sh))

	resp := env.exec(t, `query($id: Int!) { labels(shipmentId: $id) { id } }`, map[string]any{"id": sh.ID})

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, domain.ErrShipmentLabelMissing.Code, resp.Errors[0].Extensions["code"])
}

func TestMutation_MarkLabelPrinted(t *testing.T) {
	env := setupTestResolver(t)
	created := env.exec(t, `mutation { generateShipment(infoPackageId: 42) { id labels { id } } }`, nil)
	require.Empty(t, created.Errors)
	sh := data(created)["generateShipment"].(map[string]any)
	label := sh["labels"].([]any)[0].(map[string]any)

	resp := env.exec(t, `mutation($s: Int!, $l: Int!) { markLabelPrinted(shipmentId: $s, labelId: $l) }`,
		map[string]any{"s": sh["id"], "l": label["id"]})
	require.Empty(t, resp.Errors)

	resp = env.exec(t, `query($s: Int!) { labels(shipmentId: $s) { id printed } }`, map[string]any{"s": sh["id"]})
	require.Empty(t, resp.Errors)
	assert.Equal(t, true, data(resp)["labels"].([]any)[0].(map[string]any)["printed"])
}

func TestQuery_LogEntries(t *testing.T) {
	env := setupTestResolver(t)
	require.Empty(t, env.exec(t, `mutation { generateShipment(infoPackageId: 42) { id } }`, nil).Errors)

	resp := env.exec(t, `{ logEntries(orderId: 100, limit: 10) { name carrier error } }`, nil)

	require.Empty(t, resp.Errors)
	assert.Equal(t, []any{map[string]any{
		"name":    domain.LogShipmentCreated,
		"carrier": "mock",
		"error":   nil,
	}}, data(resp)["logEntries"])
}

func TestExecute_ValidationErrors(t *testing.T) {
	env := setupTestResolver(t)

	tests := []struct {
		name  string
		query string
		vars  map[string]any
	}{
		{name: "syntax", query: `{ health `},
		{name: "unknown field", query: `{ shipments { id } }`},
		{name: "missing argument", query: `{ selectCarriers { id } }`},
		{name: "missing variable", query: `query($id: Int!) { shipment(id: $id) { id } }`},
		{name: "wrong variable type", query: `query($id: Int!) { shipment(id: $id) { id } }`, vars: map[string]any{"id": "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.exec(t, tt.query, tt.vars)
			assert.NotEmpty(t, resp.Errors)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestExecute_OperationName(t *testing.T) {
	env := setupTestResolver(t)
	doc := `query A { health } query B { carriers { id } }`

	resp := env.resolver.Execute(context.Background(), graphql.Request{Query: doc})
	require.Len(t, resp.Errors, 1)

	resp = env.resolver.Execute(context.Background(), graphql.Request{Query: doc, OperationName: "A"})
	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{"health": true}, data(resp))
}

func TestExecute_SkipDirective(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `query($hide: Boolean!) { health carriers @skip(if: $hide) { id } }`, map[string]any{"hide": true})

	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{"health": true}, data(resp))
}

func TestExecute_KeepsSelectionOrder(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `{ health carriers(shopId: 2) { shortName name } }`, nil)
	require.Empty(t, resp.Errors)

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Equal(t,
		`{"data":{"health":true,"carriers":[{"shortName":"mock","name":"Mock Express"},{"shortName":"freightcom","name":"Freight"}]}}`,
		string(b))
}

func TestMutation_SaveCarrierThenQuery(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `mutation {
		saveCarrier(input: {
			name: "Purolator", shortName: " Purolator ", active: true, shopIds: [1, 3],
			config: [{key: "api_key", value: "secret", required: true}]
		}) { id shortName shopIds }
	}`, nil)
	require.Empty(t, resp.Errors)
	saved := data(resp)["saveCarrier"].(map[string]any)
	assert.Equal(t, "purolator", saved["shortName"])
	assert.Equal(t, []int64{1, 3}, saved["shopIds"])

	resp = env.exec(t, `query($id: Int!) {
		carrier(id: $id) { name }
		configurationEntry(carrierId: $id, key: "api_key") { key value required }
	}`, map[string]any{"id": saved["id"]})
	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{"name": "Purolator"}, data(resp)["carrier"])
	assert.Equal(t, map[string]any{"key": "api_key", "value": "secret", "required": true}, data(resp)["configurationEntry"])

	resp = env.exec(t, `query($id: Int!) { configurationEntry(carrierId: $id, key: "missing") { key } }`, map[string]any{"id": saved["id"]})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, domain.ErrCarrierConfigurationNotFound.Code, resp.Errors[0].Extensions["code"])
}

func TestMutation_SaveCarrier_ReportsInvalidFields(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `mutation { saveCarrier(input: {name: "", shortName: "x", active: true, shopIds: [0]}) { id } }`, nil)

	require.Len(t, resp.Errors, 1)
	ext := resp.Errors[0].Extensions
	assert.Equal(t, domain.ErrInvalidConfigurationData.Code, ext["code"])
	fields, ok := ext["fields"].([]domain.FieldError)
	require.True(t, ok)
	assert.Contains(t, fields, domain.FieldError{Field: "name", Rule: "required"})
	assert.Len(t, fields, 2)
	assert.Nil(t, data(resp)["saveCarrier"])
}

func TestMutation_SaveTypeShipment_ReferenceConflict(t *testing.T) {
	env := setupTestResolver(t)
	const q = `mutation($carrier: Int!, $ref: Int!) {
		saveTypeShipment(input: {carrierId: $carrier, name: "Ground", businessCode: "GND", referenceCarrierId: $ref, active: true}) {
			referenceCarrierId
		}
	}`

	resp := env.exec(t, q, map[string]any{"carrier": env.carrier.ID, "ref": int64(7)})
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, domain.ErrTypeShipmentCarrierConflict.Code, resp.Errors[0].Extensions["code"])

	resp = env.exec(t, q, map[string]any{"carrier": env.carrier.ID, "ref": int64(8)})
	require.Empty(t, resp.Errors)

	resp = env.exec(t, `query($carrier: Int!) { typeShipments(carrierId: $carrier) { businessCode } }`,
		map[string]any{"carrier": env.carrier.ID})
	require.Empty(t, resp.Errors)
	assert.Equal(t, []any{
		map[string]any{"businessCode": "EXP"},
		map[string]any{"businessCode": "GND"},
	}, data(resp)["typeShipments"])
}

func TestMutation_RemoveCarrierRemovesTypeShipments(t *testing.T) {
	env := setupTestResolver(t)
	vars := map[string]any{"id": env.carrier.ID}

	resp := env.exec(t, `mutation($id: Int!) { removeCarrier(id: $id) }`, vars)
	require.Empty(t, resp.Errors)
	assert.Equal(t, true, data(resp)["removeCarrier"])

	resp = env.exec(t, `query($id: Int!) { carrier(id: $id) { id } typeShipments(carrierId: $id) { id } }`, vars)
	require.Empty(t, resp.Errors)
	assert.Nil(t, data(resp)["carrier"])
	assert.Equal(t, []any{}, data(resp)["typeShipments"])

	resp = env.exec(t, `mutation { generateShipment(infoPackageId: 42) { id } }`, nil)
	require.Len(t, resp.Errors, 1)
}

func TestMutation_SaveValidationRuleDrivesSelection(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `mutation($deny: Int!) {
		saveValidationRule(input: {name: "heavy parcels", active: true, minWeight: 1.5, denyCarrierIds: [$deny]}) {
			id minWeight maxWeight shopId denyCarrierIds allowCarrierIds
		}
	}`, map[string]any{"deny": env.carrier.ID})
	require.Empty(t, resp.Errors)
	saved := data(resp)["saveValidationRule"].(map[string]any)
	assert.Equal(t, 1.5, saved["minWeight"])
	assert.Nil(t, saved["maxWeight"])
	assert.Nil(t, saved["shopId"])
	assert.Equal(t, []int64{env.carrier.ID}, saved["denyCarrierIds"])
	assert.Equal(t, []int64{}, saved["allowCarrierIds"])

	resp = env.exec(t, `{ selectCarriers(orderId: 100) { id } }`, nil)
	require.Empty(t, resp.Errors)
	assert.Equal(t, []any{}, data(resp)["selectCarriers"])

	vars := map[string]any{"id": saved["id"]}
	resp = env.exec(t, `query($id: Int!) { validationRule(id: $id) { name } }`, vars)
	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{"name": "heavy parcels"}, data(resp)["validationRule"])

	resp = env.exec(t, `mutation($id: Int!) { removeValidationRule(id: $id) }`, vars)
	require.Empty(t, resp.Errors)

	resp = env.exec(t, `{ selectCarriers(orderId: 100) { shortName } }`, nil)
	require.Empty(t, resp.Errors)
	assert.Equal(t, []any{map[string]any{"shortName": "mock"}}, data(resp)["selectCarriers"])
}

func TestMutation_SaveValidationRule_RejectsBadWeights(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `mutation { saveValidationRule(input: {name: "r", active: true, minWeight: 5, maxWeight: 1}) { id } }`, nil)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, domain.ErrInvalidConfigurationData.Code, resp.Errors[0].Extensions["code"])
}

func TestMutation_SaveInfoPackageThenGenerate(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `mutation {
		saveInfoPackage(input: {orderId: 100, shopId: 1, referenceCarrierId: 7, quantity: 1, weight: 2.5, cashOnDelivery: "10"}) {
			id weight cashOnDelivery typeShipmentId
		}
	}`, nil)
	require.Empty(t, resp.Errors)
	saved := data(resp)["saveInfoPackage"].(map[string]any)
	assert.Equal(t, 2.5, saved["weight"])
	assert.Equal(t, "10.00", saved["cashOnDelivery"])
	assert.Nil(t, saved["typeShipmentId"])

	resp = env.exec(t, `mutation($pkg: Int!) { generateShipment(infoPackageId: $pkg) { infoPackageId product } }`,
		map[string]any{"pkg": saved["id"]})
	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{"infoPackageId": saved["id"], "product": "EXP"}, data(resp)["generateShipment"])

	resp = env.exec(t, `query($pkg: Int!) { infoPackage(id: $pkg) { orderId } }`, map[string]any{"pkg": saved["id"]})
	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{"orderId": int64(100)}, data(resp)["infoPackage"])
}

func TestMutation_SaveInfoPackage_RejectsBadAmount(t *testing.T) {
	env := setupTestResolver(t)

	resp := env.exec(t, `mutation { saveInfoPackage(input: {orderId: 100, referenceCarrierId: 7, cashOnDelivery: "ten"}) { id } }`, nil)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, domain.ErrInvalidConfigurationData.Code, resp.Errors[0].Extensions["code"])
}
