package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/printpoint/print-shop-backend/internal/cart"
	"github.com/printpoint/print-shop-backend/internal/payment"
)

const shippingJSON = `{"fullName":"Asha Rao","line1":"12 MG Road","city":"Bengaluru","state":"KA","zip":"560001","country":"IN","phone":"123"}`

func makeAppWithCheckoutHandler(f *fixture) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			claims := jwt.MapClaims{"user_id": v, "role": c.Get("X-User-Role")}
			c.Locals("user", &jwt.Token{Claims: claims})
		}
		return c.Next()
	})
	NewHandler(f.svc, f.carts).RegisterProtectedRoutes(app)
	return app
}

func newCheckoutRequest(method, path, session, userID, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(cart.SessionHeader, session)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	return req
}

func readBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	raw, _ := io.ReadAll(res.Body)
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return body
}

func TestCheckoutRoutes_HappyPath(t *testing.T) {
	f := newFixture(t)
	session := uuid.NewString()
	fillCart(t, f.carts.Open(session))
	app := makeAppWithCheckoutHandler(f)

	res, _ := app.Test(newCheckoutRequest("POST", "/api/v1/checkout", session, "", `{"shippingAddress":`+shippingJSON+`}`))
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}

	res, _ = app.Test(newCheckoutRequest("POST", "/api/v1/checkout", session, "u-1", `{"shippingAddress":`+shippingJSON+`}`))
	if res.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", res.StatusCode)
	}
	var pending struct {
		Order struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Total  string `json:"total"`
		} `json:"order"`
		Payment struct {
			ID     string `json:"id"`
			KeyID  string `json:"keyId"`
			Amount int64  `json:"amount"`
		} `json:"payment"`
	}
	if err := json.NewDecoder(res.Body).Decode(&pending); err != nil {
		t.Fatalf("decode pending: %v", err)
	}
	if pending.Order.Status != "pending" || pending.Order.Total != "61.42" || pending.Payment.Amount != 6142 || pending.Payment.KeyID != "rzp_test" {
		t.Fatalf("unexpected pending checkout %+v", pending)
	}

	cb := fmt.Sprintf(`{"sessionId":%q,"paymentId":"pay_1","signature":%q}`, pending.Payment.ID, payment.Sign(gatewaySecret, pending.Payment.ID, "pay_1"))
	res, _ = app.Test(newCheckoutRequest("POST", "/api/v1/checkout/"+pending.Order.ID+"/confirm", session, "u-1", cb))
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	body := readBody(t, res)
	if body["status"] != "confirmed" || body["cartCleared"] != true {
		t.Fatalf("unexpected confirm body %v", body)
	}
}

func TestCheckoutRoutes_Errors(t *testing.T) {
	f := newFixture(t)
	app := makeAppWithCheckoutHandler(f)
	filled := uuid.NewString()
	fillCart(t, f.carts.Open(filled))

	tests := []struct {
		name    string
		session string
		body    string
		status  int
		code    string
	}{
		{name: "malformed body", session: filled, body: `{`, status: fiber.StatusBadRequest},
		{name: "empty cart", session: uuid.NewString(), body: `{"shippingAddress":` + shippingJSON + `}`, status: fiber.StatusUnprocessableEntity, code: "empty_cart"},
		{name: "missing address", session: filled, body: `{}`, status: fiber.StatusUnprocessableEntity, code: "incomplete_address"},
		{name: "partial address", session: filled, body: `{"shippingAddress":{"fullName":"Asha Rao"}}`, status: fiber.StatusUnprocessableEntity, code: "incomplete_address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _ := app.Test(newCheckoutRequest("POST", "/api/v1/checkout", tt.session, "u-1", tt.body))
			if res.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, res.StatusCode)
			}
			if tt.code == "" {
				return
			}
			if body := readBody(t, res); body["code"] != tt.code {
				t.Fatalf("expected code %s, got %v", tt.code, body)
			}
		})
	}
}

func TestCheckoutRoutes_PartialAddressListsFields(t *testing.T) {
	f := newFixture(t)
	session := uuid.NewString()
	fillCart(t, f.carts.Open(session))
	app := makeAppWithCheckoutHandler(f)

	res, _ := app.Test(newCheckoutRequest("POST", "/api/v1/checkout", session, "u-1", `{"shippingAddress":{"fullName":"Asha Rao"}}`))
	body := readBody(t, res)
	fields, ok := body["fields"].(map[string]any)
	if !ok || fields["phone"] == nil || fields["fullname"] != nil {
		t.Fatalf("expected missing fields without fullName, got %v", body)
	}
}

func TestCheckoutRoutes_GatewayDown(t *testing.T) {
	f := newFixture(t)
	f.gateway.createErr = payment.ErrUnavailable
	session := uuid.NewString()
	fillCart(t, f.carts.Open(session))
	app := makeAppWithCheckoutHandler(f)

	res, _ := app.Test(newCheckoutRequest("POST", "/api/v1/checkout", session, "u-1", `{"addressId":"a-1"}`))
	if res.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.StatusCode)
	}
	body := readBody(t, res)
	orderID, _ := body["orderId"].(string)
	if orderID == "" || body["retry"] != true {
		t.Fatalf("expected retryable failure with order id, got %v", body)
	}

	f.gateway.createErr = nil
	res, _ = app.Test(newCheckoutRequest("POST", "/api/v1/checkout/"+orderID+"/session", session, "u-1", ""))
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	res, _ = app.Test(newCheckoutRequest("POST", "/api/v1/checkout/"+orderID+"/session", session, "u-2", ""))
	if res.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.StatusCode)
	}
}

func TestCheckoutRoutes_ConfirmFailures(t *testing.T) {
	f := newFixture(t)
	p := f.begin(t)
	app := makeAppWithCheckoutHandler(f)

	res, _ := app.Test(newCheckoutRequest("POST", "/api/v1/checkout/"+p.Order.ID+"/confirm", "", "u-1", `{"paymentId":"pay_1","signature":"nope"}`))
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}

	res, _ = app.Test(newCheckoutRequest("POST", "/api/v1/checkout/"+p.Order.ID+"/dismiss", "", "u-1", ""))
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if body := readBody(t, res); body["status"] != "dismissed" {
		t.Fatalf("unexpected dismiss body %v", body)
	}

	if _, err := f.orders.Cancel(context.Background(), p.Order.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	cb := fmt.Sprintf(`{"paymentId":"pay_1","signature":%q}`, payment.Sign(gatewaySecret, p.Session.ID, "pay_1"))
	res, _ = app.Test(newCheckoutRequest("POST", "/api/v1/checkout/"+p.Order.ID+"/confirm", "", "u-1", cb))
	if res.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.StatusCode)
	}
	body := readBody(t, res)
	if body["code"] != "reconciliation_required" || body["supportReference"] != p.Order.ID+"/pay_1" {
		t.Fatalf("unexpected reconciliation body %v", body)
	}

	res, _ = app.Test(newCheckoutRequest("POST", "/api/v1/checkout/missing/dismiss", "", "u-1", ""))
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
}
