package ecoline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ecoline-bot/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

const (
	sessionCookie = "ECOLINE_SM_SALE_UID"
	catalogPath   = "/order/1/"
	basketPath    = "/order/make.php"
)

type ClientOptions struct {
	BaseUrl  string
	Username string
	Password string
}

// Client owns the cookie-jar session for exactly one site account. It is
// not safe to share a Client between conversations: the remote basket is
// keyed by session and interleaved mutations would corrupt it.
type Client struct {
	baseUrl  *url.URL
	http     *resty.Client
	username string
	password string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	instrumentClient(client)

	return &Client{
		baseUrl:  baseUrl,
		http:     client,
		username: opts.Username,
		password: opts.Password,
	}, nil
}

// Login performs the credential POST. The site answers HTTP 200 even for
// bad credentials, so the only evidence of success is the session cookie.
func (c *Client) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"USER_LOGIN":    c.username,
			"USER_PASSWORD": c.password,
			"TYPE":          "AUTH",
			"AUTH_FORM":     "Y",
		}).
		Post("/auth/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return &AuthError{Err: err}
	}

	for _, cookie := range res.Cookies() {
		if cookie.Name == sessionCookie {
			return nil
		}
	}
	span.SetStatus(codes.Error, "session cookie missing from login response")
	return &AuthError{Err: errors.New("wrong username or password")}
}

// CheckAuth issues a lightweight GET of the home page and checks for the
// authenticated-only marker. Used to lazily detect session expiry, the
// site does not expose a session TTL.
func (c *Client) CheckAuth(ctx context.Context) (bool, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get("/")
	if err != nil {
		return false, &TransportError{Op: "GET /", Err: err}
	}
	return LooksAuthenticated(res.String()), nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("logout", "yes").
		Get("/")
	if err != nil {
		return &TransportError{Op: "GET /?logout=yes", Err: err}
	}
	return nil
}

func (c *Client) fetchDoc(ctx context.Context, path, referer string) (*goquery.Document, error) {
	req := c.http.R().SetContext(ctx)
	if referer != "" {
		req.SetHeader("referer", c.baseUrl.String()+referer)
	}
	res, err := req.Get(path)
	if err != nil {
		return nil, &TransportError{Op: "GET " + path, Err: err}
	}

	body := res.String()
	if !LooksAuthenticated(body) {
		return nil, ErrUnauthenticated
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &ExtractionError{Op: "parse " + path, Err: err}
	}
	return doc, nil
}

// authRetry re-establishes the session and retries exactly once when a
// response does not look authenticated. Only read operations go through
// here: checkout is not idempotent and must never be re-sent.
func (c *Client) authRetry(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	if !errors.Is(err, ErrUnauthenticated) {
		return err
	}

	slog.DebugContext(ctx, "session looks expired, re-authenticating")
	if loginErr := c.Login(ctx); loginErr != nil {
		return loginErr
	}
	return op(ctx)
}

func (c *Client) Bonus(ctx context.Context) (int, bool, error) {
	ctx, span := tracer.Start(ctx, "client:Bonus")
	defer span.End()

	var bonus int
	var present bool
	err := c.authRetry(ctx, func(ctx context.Context) error {
		doc, err := c.fetchDoc(ctx, "/profile/", "")
		if err != nil {
			return err
		}
		bonus, present = ExtractBonus(doc.Text())
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch bonus balance")
		return 0, false, err
	}
	return bonus, present, nil
}

func (c *Client) LastOrder(ctx context.Context) (LastOrder, bool, error) {
	ctx, span := tracer.Start(ctx, "client:LastOrder")
	defer span.End()

	var last LastOrder
	var present bool
	err := c.authRetry(ctx, func(ctx context.Context) error {
		doc, err := c.fetchDoc(ctx, "/profile/orders/", "")
		if err != nil {
			return err
		}
		date, ok := ExtractLastOrderDate(doc)
		if !ok {
			present = false
			return nil
		}
		// days elapsed is computed locally, the server only renders the date
		last = LastOrder{
			Date:    date,
			DaysAgo: int(timezone.Now().Sub(date).Hours() / 24),
		}
		present = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch order history")
		return LastOrder{}, false, err
	}
	return last, present, nil
}

func (c *Client) Basket(ctx context.Context) (BasketSnapshot, error) {
	ctx, span := tracer.Start(ctx, "client:Basket")
	defer span.End()

	var snapshot BasketSnapshot
	err := c.authRetry(ctx, func(ctx context.Context) error {
		doc, err := c.fetchDoc(ctx, basketPath, basketPath)
		if err != nil {
			return err
		}
		// an absent basket table is the empty-basket page shape
		snapshot, _ = ExtractBasket(doc)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch basket")
		return BasketSnapshot{}, err
	}
	return snapshot, nil
}

// ClearBasket attempts to delete every current basket line. Individual
// deletions are best-effort, the returned bool reflects the final
// observed state of the basket, not intent.
func (c *Client) ClearBasket(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "client:ClearBasket")
	defer span.End()

	snapshot, err := c.Basket(ctx)
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	for _, item := range snapshot.Items {
		if item.DeleteLink == "" {
			slog.WarnContext(ctx, "basket item has no delete link", "id", item.ID)
			continue
		}
		_, err := c.http.R().
			SetContext(ctx).
			SetHeader("referer", c.baseUrl.String()+basketPath).
			Get(item.DeleteLink)
		if err != nil {
			slog.WarnContext(ctx, "failed to delete basket item", "id", item.ID, "err", err)
		}
	}

	snapshot, err = c.Basket(ctx)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return snapshot.Empty(), nil
}

// AddToBasket resolves the product against the catalog listing and adds
// it. An unresolvable product is silently skipped: callers must verify
// the post-state of the basket rather than trust this call.
func (c *Client) AddToBasket(ctx context.Context, product Product) error {
	ctx, span := tracer.Start(ctx, "client:AddToBasket")
	defer span.End()

	err := c.authRetry(ctx, func(ctx context.Context) error {
		doc, err := c.fetchDoc(ctx, catalogPath, catalogPath)
		if err != nil {
			return err
		}

		id, ok := ExtractProductID(doc, product.Name)
		if !ok {
			slog.WarnContext(ctx, "product not found in catalog, nothing added", "name", product.Name)
			return nil
		}

		_, err = c.http.R().
			SetContext(ctx).
			SetHeader("referer", c.baseUrl.String()+catalogPath).
			SetQueryParams(map[string]string{
				"action":   "ADD2BASKET",
				"id":       id,
				"quantity": strconv.Itoa(product.Quantity),
				"prop[0]":  "0",
			}).
			Get(catalogPath)
		if err != nil {
			return &TransportError{Op: "GET " + catalogPath + "?action=ADD2BASKET", Err: err}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add product to basket")
	}
	return err
}

// OrderFormFields scrapes the hidden checkout inputs. They may be bound
// to the session or form instance, so they are fetched fresh for every
// checkout attempt.
func (c *Client) OrderFormFields(ctx context.Context) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "client:OrderFormFields")
	defer span.End()

	var fields map[string]string
	err := c.authRetry(ctx, func(ctx context.Context) error {
		doc, err := c.fetchDoc(ctx, basketPath, basketPath)
		if err != nil {
			return err
		}
		fields = ExtractOrderFormFields(doc)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch order form fields")
		return nil, err
	}
	return fields, nil
}

// Checkout submits the accumulated order form. It never auto-retries:
// once the POST is sent the order may exist server-side, so transport
// and extraction failures mean "outcome unknown", not "order failed".
func (c *Client) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "client:Checkout")
	defer span.End()

	basket, err := c.Basket(ctx)
	if err != nil {
		span.RecordError(err)
		return CheckoutResult{}, err
	}
	if basket.Empty() {
		span.SetStatus(codes.Error, ErrEmptyBasket.Error())
		return CheckoutResult{}, ErrEmptyBasket
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("referer", c.baseUrl.String()+basketPath).
		SetFormData(req.Fields).
		Post(basketPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout POST failed")
		return CheckoutResult{}, &TransportError{Op: "POST " + basketPath, Err: err}
	}

	slog.DebugContext(
		ctx, "checkout response",
		"status", res.StatusCode(),
		"fields", req.Fields,
	)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse confirmation page")
		return CheckoutResult{}, &ExtractionError{Op: "checkout confirmation", Err: err}
	}

	result, err := ExtractCheckoutResult(doc, req.Product)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout outcome is unknown")
		return CheckoutResult{}, err
	}
	return result, nil
}
