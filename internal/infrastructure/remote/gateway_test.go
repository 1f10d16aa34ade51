package remote

import (
	"context"
	"net/http"
	"testing"

	"github.com/marketplace/backend/internal/domain/integration"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) (*fakeAdminAPI, *StorefrontGateway) {
	t.Helper()
	api, srv := newFakeAdminAPI(t)
	exec := NewExecutor(testConfig(), srv.URL, "token-123", nil)
	return api, NewStorefrontGateway("shop.example.com", exec)
}

func TestStorefrontGateway_CreateProduct(t *testing.T) {
	api, gw := newTestGateway(t)
	api.reply("productCreate", http.StatusOK,
		`{"data":{"productCreate":{"product":{"id":"gid://shopify/Product/42"},"userErrors":[]}}}`)

	id, err := gw.CreateProduct(context.Background(), integration.ProductSpec{Title: "Dress", Visible: true})
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Product/42", id)
	assert.Equal(t, "shop.example.com", gw.TenantDomain())
}

func TestStorefrontGateway_CreateProduct_UserErrors(t *testing.T) {
	api, gw := newTestGateway(t)
	api.reply("productCreate", http.StatusOK,
		`{"data":{"productCreate":{"product":null,"userErrors":[{"field":["title"],"message":"Title can't be blank"}]}}}`)

	_, err := gw.CreateProduct(context.Background(), integration.ProductSpec{})
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindRemoteValidation))
	assert.Contains(t, err.Error(), "title: Title can't be blank")
	assert.Len(t, api.calls("productCreate"), 1, "validation failures are not retried")
}

func TestStorefrontGateway_ListVariants(t *testing.T) {
	api, gw := newTestGateway(t)
	api.reply("productVariants", http.StatusOK, `{"data":{"product":{"variants":{"nodes":[
		{"id":"gid://shopify/ProductVariant/1","sku":"D-S","price":"49.90","barcode":"111",
		 "inventoryItem":{"id":"gid://shopify/InventoryItem/11"},
		 "selectedOptions":[{"name":"Size","value":"S"},{"name":"Color","value":"Red"}]}
	]}}}}`)

	variants, err := gw.ListVariants(context.Background(), "gid://shopify/Product/1")
	require.NoError(t, err)
	require.Len(t, variants, 1)

	v := variants[0]
	assert.Equal(t, "gid://shopify/ProductVariant/1", v.ID)
	assert.Equal(t, "D-S", v.SKU)
	assert.True(t, decimal.RequireFromString("49.9").Equal(v.Price))
	assert.Equal(t, "gid://shopify/InventoryItem/11", v.InventoryItemID)
	assert.Equal(t, "Color:Red|Size:S", v.Key())
}

func TestStorefrontGateway_ListVariants_FollowsCursor(t *testing.T) {
	api, gw := newTestGateway(t)
	api.on("productVariants", func(vars map[string]any) (int, string) {
		if vars["after"] == nil {
			return http.StatusOK, `{"data":{"product":{"variants":{
				"nodes":[{"id":"v1","sku":"D-S","price":"1.00","inventoryItem":{"id":"i1"},"selectedOptions":[{"name":"Size","value":"S"}]}],
				"pageInfo":{"hasNextPage":true,"endCursor":"c1"}}}}}`
		}
		return http.StatusOK, `{"data":{"product":{"variants":{
			"nodes":[{"id":"v2","sku":"D-M","price":"1.00","inventoryItem":{"id":"i2"},"selectedOptions":[{"name":"Size","value":"M"}]}],
			"pageInfo":{"hasNextPage":false,"endCursor":"c2"}}}}}`
	})

	variants, err := gw.ListVariants(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, "v1", variants[0].ID)
	assert.Equal(t, "v2", variants[1].ID)

	calls := api.calls("productVariants")
	require.Len(t, calls, 2)
	assert.Equal(t, "c1", calls[1].Variables["after"])
}

func TestStorefrontGateway_ListVariants_MissingProduct(t *testing.T) {
	api, gw := newTestGateway(t)
	api.reply("productVariants", http.StatusOK, `{"data":{"product":null}}`)

	_, err := gw.ListVariants(context.Background(), "gid://shopify/Product/404")
	assert.ErrorIs(t, err, integration.ErrRemoteProductMissing)
}

func TestStorefrontGateway_ListOptions(t *testing.T) {
	api, gw := newTestGateway(t)
	api.reply("productOptions", http.StatusOK, `{"data":{"product":{"options":[
		{"id":"gid://shopify/ProductOption/1","name":"Size","values":["S","M"]}
	]}}}`)

	options, err := gw.ListOptions(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []integration.RemoteOption{
		{ID: "gid://shopify/ProductOption/1", Name: "Size", Values: []string{"S", "M"}},
	}, options)
}

func TestStorefrontGateway_CreateVariants(t *testing.T) {
	api, gw := newTestGateway(t)
	api.reply("productVariantsBulkCreate", http.StatusOK, `{"data":{"productVariantsBulkCreate":{
		"productVariants":[{"id":"v-9","sku":"D-L","price":"10.00","inventoryItem":{"id":"inv-9"},
		  "selectedOptions":[{"name":"Size","value":"L"}]}],
		"userErrors":[]}}}`)

	created, err := gw.CreateVariants(context.Background(), "p1", []integration.VariantSpec{{
		Key:     "Size:L",
		Options: []integration.OptionValue{{Name: "Size", Value: "L"}},
		SKU:     "D-L",
		Price:   decimal.NewFromInt(10),
	}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "inv-9", created[0].InventoryItemID)

	calls := api.calls("productVariantsBulkCreate")
	require.Len(t, calls, 1)
	assert.Equal(t, "p1", calls[0].Variables["productId"])
}

func TestStorefrontGateway_EmptyBatchesSkipTheNetwork(t *testing.T) {
	api, gw := newTestGateway(t)
	ctx := context.Background()

	created, err := gw.CreateVariants(ctx, "p1", nil)
	require.NoError(t, err)
	assert.Nil(t, created)
	require.NoError(t, gw.UpdateVariants(ctx, "p1", nil))
	require.NoError(t, gw.DeleteVariants(ctx, "p1", nil))
	require.NoError(t, gw.CreateOptions(ctx, "p1", nil))

	assert.Empty(t, api.requests)
}

func TestStorefrontGateway_Mutations(t *testing.T) {
	api, gw := newTestGateway(t)
	api.reply("productVariantsBulkUpdate", http.StatusOK, `{"data":{"productVariantsBulkUpdate":{"userErrors":[]}}}`)
	api.reply("productVariantsBulkDelete", http.StatusOK, `{"data":{"productVariantsBulkDelete":{"userErrors":[]}}}`)
	api.reply("productOptionsCreate", http.StatusOK, `{"data":{"productOptionsCreate":{"userErrors":[]}}}`)
	api.reply("productUpdate", http.StatusOK, `{"data":{"productUpdate":{"userErrors":[]}}}`)
	api.reply("inventoryItemUpdate", http.StatusOK, `{"data":{"inventoryItemUpdate":{"userErrors":[]}}}`)
	api.reply("inventorySetQuantities", http.StatusOK, `{"data":{"inventorySetQuantities":{"userErrors":[]}}}`)

	ctx := context.Background()
	require.NoError(t, gw.UpdateVariants(ctx, "p1", []integration.VariantUpdate{{VariantID: "v1", SKU: "S"}}))
	require.NoError(t, gw.DeleteVariants(ctx, "p1", []string{"v2"}))
	require.NoError(t, gw.CreateOptions(ctx, "p1", []integration.OptionSpec{{Name: "Fabric", Values: []string{"Linen"}}}))
	require.NoError(t, gw.SetProductVisibility(ctx, "p1", false))
	require.NoError(t, gw.SetInventoryTracking(ctx, "inv-1", true))
	require.NoError(t, gw.SetInventoryQuantity(ctx, "inv-1", "loc-1", 0))

	hide := api.calls("productUpdate")
	require.Len(t, hide, 1)
	assert.Equal(t, "DRAFT", hide[0].Variables["product"].(map[string]any)["status"])

	del := api.calls("productVariantsBulkDelete")
	require.Len(t, del, 1)
	assert.Equal(t, []any{"v2"}, del[0].Variables["variantsIds"])
}

const sizeOptionResponse = `{"data":{"product":{"options":[
	{"id":"o1","name":"Size","values":["S","M"],"optionValues":[
		{"id":"val-s","name":"S","hasVariants":false},
		{"id":"val-m","name":"M","hasVariants":true}
	]}
]}}}`

func TestStorefrontGateway_UpdateOption(t *testing.T) {
	t.Run("adds missing values and deletes unused ones", func(t *testing.T) {
		api, gw := newTestGateway(t)
		api.reply("productOptions", http.StatusOK, sizeOptionResponse)
		api.reply("productOptionUpdate", http.StatusOK, `{"data":{"productOptionUpdate":{"userErrors":[]}}}`)

		require.NoError(t, gw.UpdateOption(context.Background(), "p1", "o1", []string{"M", "L"}))

		calls := api.calls("productOptionUpdate")
		require.Len(t, calls, 1)
		vars := calls[0].Variables
		assert.Equal(t, map[string]any{"id": "o1"}, vars["option"])
		assert.Equal(t, []any{map[string]any{"name": "L"}}, vars["optionValuesToAdd"])
		assert.Equal(t, []any{"val-s"}, vars["optionValuesToDelete"])
	})

	t.Run("values in use are kept", func(t *testing.T) {
		api, gw := newTestGateway(t)
		api.reply("productOptions", http.StatusOK, sizeOptionResponse)
		api.reply("productOptionUpdate", http.StatusOK, `{"data":{"productOptionUpdate":{"userErrors":[]}}}`)

		require.NoError(t, gw.UpdateOption(context.Background(), "p1", "o1", []string{"L"}))

		calls := api.calls("productOptionUpdate")
		require.Len(t, calls, 1)
		assert.Equal(t, []any{"val-s"}, calls[0].Variables["optionValuesToDelete"])
	})

	t.Run("nothing to do skips the mutation", func(t *testing.T) {
		api, gw := newTestGateway(t)
		api.reply("productOptions", http.StatusOK, sizeOptionResponse)

		require.NoError(t, gw.UpdateOption(context.Background(), "p1", "o1", []string{"m"}))
		assert.Empty(t, api.calls("productOptionUpdate"))
	})

	t.Run("unknown option", func(t *testing.T) {
		api, gw := newTestGateway(t)
		api.reply("productOptions", http.StatusOK, sizeOptionResponse)

		err := gw.UpdateOption(context.Background(), "p1", "o9", []string{"M"})
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindRemoteValidation))
	})
}

func TestStorefrontGateway_DeleteOptions(t *testing.T) {
	api, gw := newTestGateway(t)
	api.reply("productOptionsDelete", http.StatusOK,
		`{"data":{"productOptionsDelete":{"deletedOptionsIds":["o2"],"userErrors":[]}}}`)

	require.NoError(t, gw.DeleteOptions(context.Background(), "p1", []string{"o2"}))
	require.NoError(t, gw.DeleteOptions(context.Background(), "p1", nil))

	calls := api.calls("productOptionsDelete")
	require.Len(t, calls, 1)
	assert.Equal(t, []any{"o2"}, calls[0].Variables["options"])
	assert.Equal(t, "NON_DESTRUCTIVE", calls[0].Variables["strategy"])
}

func TestStorefrontGateway_SetInventoryQuantity_UserError(t *testing.T) {
	api, gw := newTestGateway(t)
	api.reply("inventorySetQuantities", http.StatusOK,
		`{"data":{"inventorySetQuantities":{"userErrors":[{"field":["input","quantities","0","locationId"],"message":"The specified location could not be found.","code":"INVALID_LOCATION"}]}}}`)

	err := gw.SetInventoryQuantity(context.Background(), "inv-1", "loc-x", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrRemoteValidation)
}

func TestStorefrontGateway_ListLocations(t *testing.T) {
	api, gw := newTestGateway(t)
	api.reply("locations", http.StatusOK, `{"data":{"locations":{"nodes":[
		{"id":"l1","name":"Closed","isActive":false},
		{"id":"l2","name":"Main","isActive":true}
	]}}}`)

	locations, err := gw.ListLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []integration.Location{
		{ID: "l1", Name: "Closed", IsActive: false},
		{ID: "l2", Name: "Main", IsActive: true},
	}, locations)
}
