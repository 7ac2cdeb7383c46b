package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"

	"tackleshop/pkg/cart"
	"tackleshop/pkg/catalog"
	"tackleshop/pkg/checkout"
	"tackleshop/pkg/device"
	"tackleshop/pkg/otel"
	"tackleshop/pkg/session"
)

const deviceCookie = "device_id"

type deviceKey struct{}

// deviceMiddleware binds the request to the caller's device, issuing a new
// device cookie when the request has none or an invalid one. The device is
// held for the duration of the request.
func deviceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var (
			d       *device.Device
			release func()
		)
		if c, err := r.Cookie(deviceCookie); err == nil {
			d, release, _ = registry.Acquire(ctx, c.Value)
		}
		if d == nil {
			var err error
			d, release, err = registry.Acquire(ctx, device.NewID())
			if err != nil {
				log.Error(ctx, "open device", "error", err)
				http.Error(w, "device error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     deviceCookie,
				Value:    d.ID,
				Path:     "/",
				Expires:  time.Now().AddDate(1, 0, 0),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		defer release()
		ctx = context.WithValue(ctx, deviceKey{}, d)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func deviceFrom(ctx context.Context) *device.Device {
	return ctx.Value(deviceKey{}).(*device.Device)
}

func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.InjectTracing(r.Context(), tracer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeCatalogError maps catalog failures: unknown products are 404, an
// unavailable catalog is 503.
func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Error(ctx, "catalog unavailable", "error", err)
	writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

type cartResponse struct {
	Items []cart.LineItem `json:"items"`
	Count int             `json:"count"`
	Total float64         `json:"total"`
}

func cartBody(s *cart.Store) cartResponse {
	snap := s.Snapshot()
	return cartResponse{Items: snap.Items, Count: snap.Count, Total: snap.Total}
}

// getCartHandler returns the cart.
// @Summary Get cart
// @Produce json
// @Success 200 {object} cartResponse
// @Router /cart [get]
func getCartHandler(w http.ResponseWriter, r *http.Request) {
	_, span := otel.AddSpan(r.Context(), "getCartHandler")
	defer span.End()

	writeJSON(w, http.StatusOK, cartBody(deviceFrom(r.Context()).Cart))
}

type addItemRequest struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

// addCartItemHandler adds a catalog product to the cart.
// @Summary Add to cart
// @Accept json
// @Produce json
// @Param item body addItemRequest true "Product and quantity"
// @Success 200 {object} cartResponse
// @Router /cart/items [post]
func addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "addCartItemHandler")
	defer span.End()

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}
	p, err := products.ProductByID(ctx, req.ID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	span.SetAttributes(attribute.Int64("product.id", p.ID), attribute.Int("quantity", req.Quantity))

	d := deviceFrom(ctx)
	d.Cart.AddToCart(ctx, cart.LineItem{ID: p.ID, Name: p.Name, Price: p.Price, Quantity: req.Quantity, Image: p.Image})
	writeJSON(w, http.StatusOK, cartBody(d.Cart))
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// updateCartItemHandler sets a line quantity; zero removes the line.
// @Summary Update quantity
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param body body quantityRequest true "New quantity"
// @Success 200 {object} cartResponse
// @Router /cart/items/{id} [put]
func updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateCartItemHandler")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}
	d := deviceFrom(ctx)
	d.Cart.UpdateQuantity(ctx, id, req.Quantity)
	writeJSON(w, http.StatusOK, cartBody(d.Cart))
}

// removeCartItemHandler removes a line from the cart.
// @Summary Remove from cart
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} cartResponse
// @Router /cart/items/{id} [delete]
func removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "removeCartItemHandler")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	d := deviceFrom(ctx)
	d.Cart.RemoveFromCart(ctx, id)
	writeJSON(w, http.StatusOK, cartBody(d.Cart))
}

// clearCartHandler empties the cart.
// @Summary Clear cart
// @Success 204
// @Router /cart [delete]
func clearCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "clearCartHandler")
	defer span.End()

	deviceFrom(ctx).Cart.ClearCart(ctx)
	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	IsLoggedIn bool             `json:"isLoggedIn"`
	Profile    *session.Profile `json:"profile"`
}

func sessionBody(s *session.Store) sessionResponse {
	p, ok := s.Profile()
	if !ok {
		return sessionResponse{}
	}
	return sessionResponse{IsLoggedIn: true, Profile: &p}
}

// getSessionHandler returns the login state and profile.
// @Summary Get session
// @Produce json
// @Success 200 {object} sessionResponse
// @Router /session [get]
func getSessionHandler(w http.ResponseWriter, r *http.Request) {
	_, span := otel.AddSpan(r.Context(), "getSessionHandler")
	defer span.End()

	writeJSON(w, http.StatusOK, sessionBody(deviceFrom(r.Context()).Session))
}

// loginRequest represents login credentials.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginHandler signs the device in. Any non-empty credentials are accepted.
// @Summary Login
// @Description Placeholder login; derives the profile name from the email
// @Accept json
// @Produce json
// @Param creds body loginRequest true "Credentials"
// @Success 200 {object} sessionResponse
// @Failure 400 {object} errorResponse
// @Router /session/login [post]
func loginHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "loginHandler")
	defer span.End()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid credentials")
		return
	}
	d := deviceFrom(ctx)
	if err := d.Session.Login(ctx, req.Email, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	log.Info(ctx, "login", "device", d.ID)
	writeJSON(w, http.StatusOK, sessionBody(d.Session))
}

// logoutHandler signs the device out; orders and favorites are kept.
// @Summary Logout
// @Success 204
// @Router /session/logout [post]
func logoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "logoutHandler")
	defer span.End()

	deviceFrom(ctx).Session.Logout(ctx)
	w.WriteHeader(http.StatusNoContent)
}

// updateProfileHandler merges the supplied fields into the profile.
// @Summary Update profile
// @Accept json
// @Produce json
// @Param profile body session.ProfilePatch true "Fields to change"
// @Success 200 {object} sessionResponse
// @Router /session/profile [patch]
func updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateProfileHandler")
	defer span.End()

	var patch session.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d := deviceFrom(ctx)
	d.Session.UpdateProfile(ctx, patch)
	writeJSON(w, http.StatusOK, sessionBody(d.Session))
}

// listOrdersHandler lists orders, most recent first.
// @Summary List orders
// @Produce json
// @Success 200 {array} order.Order
// @Router /orders [get]
func listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	_, span := otel.AddSpan(r.Context(), "listOrdersHandler")
	defer span.End()

	writeJSON(w, http.StatusOK, deviceFrom(r.Context()).Session.Orders())
}

// listFavoritesHandler lists favorite product ids.
// @Summary List favorites
// @Produce json
// @Success 200 {array} int
// @Router /favorites [get]
func listFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	_, span := otel.AddSpan(r.Context(), "listFavoritesHandler")
	defer span.End()

	writeJSON(w, http.StatusOK, deviceFrom(r.Context()).Session.Favorites())
}

type favoriteResponse struct {
	ID       int64 `json:"id"`
	Favorite bool  `json:"favorite"`
}

// toggleFavoriteHandler flips the favorite flag of a product.
// @Summary Toggle favorite
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} favoriteResponse
// @Router /favorites/{id} [post]
func toggleFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "toggleFavoriteHandler")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	fav := deviceFrom(ctx).Session.ToggleFavorite(ctx, id)
	writeJSON(w, http.StatusOK, favoriteResponse{ID: id, Favorite: fav})
}

// listProductsHandler lists products, optionally by category or type.
// @Summary List products
// @Produce json
// @Param category query string false "Category slug"
// @Param type query string false "Product type"
// @Success 200 {array} catalog.Product
// @Failure 503 {object} errorResponse
// @Router /products [get]
func listProductsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listProductsHandler")
	defer span.End()

	q := catalog.Query{Category: r.URL.Query().Get("category"), Type: r.URL.Query().Get("type")}
	list, err := products.Search(ctx, q)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// getProductHandler retrieves a product by ID.
// @Summary Get product
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} catalog.Product
// @Failure 404 {object} errorResponse
// @Router /products/{id} [get]
func getProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getProductHandler")
	defer span.End()

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	p, err := products.ProductByID(ctx, id)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// listCategoriesHandler lists the categories.
// @Summary List categories
// @Produce json
// @Success 200 {array} catalog.Category
// @Router /categories [get]
func listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalog.Categories())
}

type categoryResponse struct {
	catalog.Category
	Types    []string          `json:"types"`
	Products []catalog.Product `json:"products"`
}

// getCategoryHandler returns a category with its products and types.
// @Summary Get category
// @Produce json
// @Param slug path string true "Category slug"
// @Success 200 {object} categoryResponse
// @Failure 404 {object} errorResponse
// @Router /categories/{slug} [get]
func getCategoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getCategoryHandler")
	defer span.End()

	c, ok := catalog.CategoryBySlug(mux.Vars(r)["slug"])
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	list, err := products.ProductsByCategory(ctx, c.Slug)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	types, err := products.Types(ctx, c.Slug)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryResponse{Category: c, Types: types, Products: list})
}

// searchHandler searches the catalog.
// @Summary Search products
// @Produce json
// @Param q query string false "Text"
// @Param category query string false "Category slug"
// @Param min query number false "Minimum price"
// @Param max query number false "Maximum price"
// @Param sort query string false "relevance|price-low|price-high|rating|newest"
// @Success 200 {array} catalog.Product
// @Failure 400 {object} errorResponse
// @Router /search [get]
func searchHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "searchHandler")
	defer span.End()

	v := r.URL.Query()
	sort, err := catalog.ParseSort(v.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := catalog.Query{Text: v.Get("q"), Category: v.Get("category"), Type: v.Get("type"), Sort: sort}
	for key, dst := range map[string]*float64{"min": &q.MinPrice, "max": &q.MaxPrice} {
		if s := v.Get(key); s != "" {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+key)
				return
			}
			*dst = f
		}
	}
	list, err := products.Search(ctx, q)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// quoteHandler prices the cart.
// @Summary Checkout quote
// @Produce json
// @Success 200 {object} checkout.Quote
// @Router /checkout/quote [get]
func quoteHandler(w http.ResponseWriter, r *http.Request) {
	_, span := otel.AddSpan(r.Context(), "quoteHandler")
	defer span.End()

	writeJSON(w, http.StatusOK, checkout.QuoteFor(deviceFrom(r.Context()).Cart.Total()))
}

type stepResponse struct {
	Step  checkout.Step  `json:"step"`
	Quote checkout.Quote `json:"quote"`
}

// shippingHandler submits the shipping step.
// @Summary Submit shipping
// @Accept json
// @Produce json
// @Param form body checkout.ShippingForm true "Shipping details"
// @Success 200 {object} stepResponse
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /checkout/shipping [post]
func shippingHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "shippingHandler")
	defer span.End()

	var form checkout.ShippingForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flow := deviceFrom(ctx).Checkout()
	if err := flow.SubmitShipping(ctx, form); err != nil {
		writeCheckoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{Step: flow.Step(), Quote: flow.Quote()})
}

// paymentHandler submits the payment step and places the order.
// @Summary Submit payment
// @Accept json
// @Produce json
// @Param form body checkout.PaymentForm true "Payment details"
// @Success 201 {object} order.Order
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /checkout/payment [post]
func paymentHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "paymentHandler")
	defer span.End()

	var form checkout.PaymentForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d := deviceFrom(ctx)
	o, err := d.Checkout().SubmitPayment(ctx, form)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	log.Info(ctx, "order placed", "device", d.ID, "order", o.ID, "total", o.Total, "items", len(o.Items))
	writeJSON(w, http.StatusCreated, o)
}

func writeCheckoutError(w http.ResponseWriter, err error) {
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Fields: verr.Fields})
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrWrongStep):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
