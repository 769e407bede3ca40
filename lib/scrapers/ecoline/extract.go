package ecoline

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ecoline-bot/lib/htmlutil"
	"ecoline-bot/lib/textutil"
	"ecoline-bot/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/shopspring/decimal"
)

// Everything in this file is a pure function over an already-fetched
// document. The site has no versioned markup contract, so all knowledge
// of the page structure is confined here: layout drift only requires
// changing these extractors.

// LooksAuthenticated reports whether a rendered page carries the
// logout link, which is only present for an authenticated session.
func LooksAuthenticated(html string) bool {
	return strings.Contains(html, "logout=yes")
}

var bonusRegex = regexp.MustCompile(`Бонусы:\s*(\d+)`)

// ExtractBonus returns the loyalty point balance from the profile page.
// A profile without the balance block is a valid, non-error outcome.
func ExtractBonus(pageText string) (int, bool) {
	groups := bonusRegex.FindStringSubmatch(pageText)
	if len(groups) < 2 {
		return 0, false
	}
	bonus, err := strconv.Atoi(groups[1])
	if err != nil {
		return 0, false
	}
	return bonus, true
}

var dateRegex = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)

// ExtractLastOrderDate returns the date of the most recent order on the
// order history page. Orders are rendered newest first.
func ExtractLastOrderDate(doc *goquery.Document) (time.Time, bool) {
	var date time.Time
	found := false
	doc.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		text := htmlutil.CleanText(cell.Text())
		if !dateRegex.MatchString(text) {
			return true
		}
		parsed, err := timezone.ParseDate(text)
		if err != nil {
			return true
		}
		date = parsed
		found = true
		return false
	})
	return date, found
}

var moneyStripRegex = regexp.MustCompile(`[^\d,.]`)

func parseMoney(s string) (decimal.Decimal, error) {
	s = moneyStripRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, fmt.Errorf("no amount found")
	}
	return decimal.NewFromString(s)
}

// ExtractBasket parses the basket table on the order page. An absent
// table is a valid outcome: an empty basket renders a different page
// shape entirely.
func ExtractBasket(doc *goquery.Document) (BasketSnapshot, bool) {
	table := doc.Find("table#basket_items")
	if table.Length() == 0 {
		return BasketSnapshot{}, false
	}

	var snapshot BasketSnapshot
	table.Find("tr[id]").Each(func(_ int, row *goquery.Selection) {
		item := BasketItem{
			ID:   row.AttrOr("id", ""),
			Name: htmlutil.CleanText(row.Find("h2.bx_ordercart_itemtitle a").Text()),
		}
		item.Quantity, _ = strconv.Atoi(row.Find("table.counter input").AttrOr("value", ""))
		row.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if htmlutil.CleanText(a.Text()) != "Удалить" {
				return true
			}
			item.DeleteLink = a.AttrOr("href", "")
			return false
		})
		snapshot.Items = append(snapshot.Items, item)
	})

	total, err := parseMoney(doc.Find("td#allSum_FORMATED").Text())
	if err == nil {
		snapshot.Total = total
	}
	return snapshot, true
}

// hidden checkout fields that may be session- or form-instance-specific,
// they must be re-scraped for every checkout attempt
var orderFormFieldNames = []string{
	"ORDER_PROP_1",
	"ORDER_PROP_2",
	"ORDER_PROP_3",
	"ORDER_PROP_5",
	"ORDER_PROP_8",
}

// ExtractOrderFormFields collects the hidden inputs of the checkout
// form. Individually missing fields are tolerated.
func ExtractOrderFormFields(doc *goquery.Document) map[string]string {
	fields := map[string]string{}
	for _, name := range orderFormFieldNames {
		input := doc.Find(fmt.Sprintf("input[name=%s]", name))
		if input.Length() == 0 {
			continue
		}
		fields[name] = input.AttrOr("value", "")
	}
	return fields
}

var productHrefRegex = regexp.MustCompile(`^/order/\d+/(\d+)/?$`)

const productMatchThreshold = 0.92

// ExtractProductID resolves a configured product name against the
// rendered catalog listing. Exact normalized title match wins, with a
// Jaro-Winkler fallback for minor title drift. No match is not an
// error: the caller observes the missing basket change instead.
func ExtractProductID(doc *goquery.Document, name string) (string, bool) {
	want := textutil.NormalizeName(name)

	bestID := ""
	bestSimilarity := 0.0
	exact := false
	doc.Find("a[title]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		groups := productHrefRegex.FindStringSubmatch(a.AttrOr("href", ""))
		if len(groups) < 2 {
			return true
		}
		title := textutil.NormalizeName(a.AttrOr("title", ""))
		if title == want {
			bestID = groups[1]
			exact = true
			return false
		}
		similarity := matchr.JaroWinkler(want, title, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			bestID = groups[1]
		}
		return true
	})

	if exact {
		return bestID, true
	}
	if bestSimilarity >= productMatchThreshold {
		return bestID, true
	}
	return "", false
}

const orderAcceptedHeading = "Ваш заказ принят"

var orderIdRegex = regexp.MustCompile(`№\s*(\d+)`)

// ExtractCheckoutResult parses the confirmation page. Unlike the other
// extractors it fails loudly: by the time this page is parsed the order
// POST has been sent, so "could not parse confirmation" must surface as
// an unknown outcome rather than be folded into "no confirmation".
func ExtractCheckoutResult(doc *goquery.Document, requested Product) (CheckoutResult, error) {
	alert := doc.Find("div.alert-success")
	heading := alert.Find("h1")
	if heading.Length() == 0 {
		return CheckoutResult{}, &ExtractionError{
			Op:  "checkout confirmation",
			Err: errors.New("confirmation heading not found"),
		}
	}
	if htmlutil.CleanText(heading.Text()) != orderAcceptedHeading {
		return CheckoutResult{}, nil
	}

	result := CheckoutResult{Accepted: true}
	groups := orderIdRegex.FindStringSubmatch(alert.Text())
	if len(groups) >= 2 {
		result.OrderID = groups[1]
	}

	rows := doc.Find("table.table tr")
	if rows.Length() < 2 {
		return CheckoutResult{}, &ExtractionError{
			Op:  "checkout confirmation",
			Err: errors.New("order property table not found"),
		}
	}
	cells := rows.Eq(1).Find("td")
	if cells.Length() < 2 {
		return CheckoutResult{}, &ExtractionError{
			Op:  "checkout confirmation",
			Err: errors.New("order property row is malformed"),
		}
	}

	confirmedName := htmlutil.CleanText(cells.Eq(0).Text())
	confirmedQuantity, err := strconv.Atoi(htmlutil.CleanText(cells.Eq(1).Text()))
	if err != nil {
		return CheckoutResult{}, &ExtractionError{
			Op:  "checkout confirmation",
			Err: fmt.Errorf("order quantity is malformed: %w", err),
		}
	}

	result.PropertiesMatched = textutil.NormalizeName(confirmedName) == textutil.NormalizeName(requested.Name) &&
		confirmedQuantity == requested.Quantity
	return result, nil
}
