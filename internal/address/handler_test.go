package address

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

func makeAppWithAddressHandler(a *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			claims := jwt.MapClaims{"user_id": v}
			c.Locals("user", &jwt.Token{Claims: claims})
		}
		return c.Next()
	})
	a.RegisterProtectedRoutes(app)
	return app
}

const homeJSON = `{"label":"Home","fullName":"Asha Rao","line1":"12 MG Road","city":"Bengaluru","state":"KA","zip":"560001","country":"IN","phone":"123"}`

func TestAddressRoute(t *testing.T) {
	seed := map[string][]Address{
		"u-42": {{ID: "a-1", UserID: "u-42", Label: "Office", ShippingAddress: fullAddress()}},
	}
	app := makeAppWithAddressHandler(NewHandler(NewService(NewInMemoryRepository(seed))))

	// unauthorized
	res, _ := app.Test(httptest.NewRequest("GET", "/api/v1/address", nil))
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}

	// authorized GET returns existing
	req := httptest.NewRequest("GET", "/api/v1/address", nil)
	req.Header.Set("X-User-ID", "u-42")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), `"line1":"12 MG Road"`) {
		t.Fatalf("unexpected body: %s", string(b))
	}

	// POST new address
	req = httptest.NewRequest("POST", "/api/v1/address", strings.NewReader(homeJSON))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u-42")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201 for add, got %d", res.StatusCode)
	}
	var created Address
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if created.ID == "" || created.Label != "Home" {
		t.Fatalf("unexpected created address %+v", created)
	}

	// update with patch
	req = httptest.NewRequest("PATCH", "/api/v1/address/"+created.ID, strings.NewReader(strings.Replace(homeJSON, "12 MG Road", "7 Brigade Road", 1)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u-42")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for patch, got %d", res.StatusCode)
	}
	b, _ = io.ReadAll(res.Body)
	if !strings.Contains(string(b), "7 Brigade Road") {
		t.Fatalf("patch response unexpected: %s", string(b))
	}

	// another user cannot touch it
	req = httptest.NewRequest("DELETE", "/api/v1/address/"+created.ID, nil)
	req.Header.Set("X-User-ID", "u-7")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for foreign address, got %d", res.StatusCode)
	}

	req = httptest.NewRequest("DELETE", "/api/v1/address/"+created.ID, nil)
	req.Header.Set("X-User-ID", "u-42")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 for delete, got %d", res.StatusCode)
	}
	req = httptest.NewRequest("GET", "/api/v1/address", nil)
	req.Header.Set("X-User-ID", "u-42")
	res, _ = app.Test(req)
	b, _ = io.ReadAll(res.Body)
	if strings.Contains(string(b), "Brigade") {
		t.Fatalf("delete did not remove entry: %s", string(b))
	}
}

func TestAddressRoute_Incomplete(t *testing.T) {
	app := makeAppWithAddressHandler(NewHandler(NewService(NewInMemoryRepository(nil))))

	req := httptest.NewRequest("POST", "/api/v1/address", strings.NewReader(`{"label":"Home","fullName":"Asha","line1":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u-1")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), "city is required") {
		t.Fatalf("expected field errors, got %s", b)
	}
}
