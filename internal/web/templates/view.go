// Package templates renders the site's pages. Components live in the
// .templ files; run `templ generate` after editing them.
package templates

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/notify"
)

// Page carries what every page needs besides its body.
type Page struct {
	Title            string
	Path             string
	UserEmail        string
	RecaptchaSiteKey string
	Notices          []notify.Notice
}

// SignedIn reports whether a user is signed in.
func (p Page) SignedIn() bool { return p.UserEmail != "" }

func (p Page) documentTitle() string {
	if p.Title == "" {
		return "Arab ShipBroker"
	}
	return p.Title + " | Arab ShipBroker"
}

func recaptchaScript(siteKey string) string {
	return "https://www.google.com/recaptcha/api.js?render=" + url.QueryEscape(siteKey)
}

func requiredMark(required bool) string {
	if required {
		return " *"
	}
	return ""
}

type navLink struct {
	href, label string
}

var navLinks = []navLink{
	{"/", "Home"},
	{"/services", "Services"},
	{"/list-cargo", "List Cargo"},
	{"/list-vessel", "List Vessel"},
	{"/contact", "Contact"},
}

// Newsletter is the state of the newsletter card.
type Newsletter struct {
	Email  string
	Name   string
	Errors map[string]string
}

type card struct {
	title, body string
}

var homeFeatures = []card{
	{"Expert Brokerage", "Decades of combined chartering experience in dry-bulk and break-bulk trades."},
	{"Market Insights", "Freight rate intelligence and fixture reports that keep you ahead of the market."},
	{"Local Expertise", "Deep regional knowledge of MENA ports, regulations and business practice."},
}

var services = []card{
	{"Dry-Bulk Brokerage", "Comprehensive chartering services for dry-bulk commodities including grains, coal, iron ore, and fertilizers with competitive rates and reliable execution."},
	{"Break-Bulk Brokerage", "Specialized handling of break-bulk cargo including steel products, machinery, and project cargo with expert logistics coordination."},
	{"S&P Services (<30K DWT)", "Vessel sales and purchase advisory for smaller tonnage vessels with comprehensive market analysis and transaction support."},
	{"Pre-Hire Inspections", "Thorough vessel inspections before charter to ensure compliance, safety, and operational readiness with detailed reporting."},
	{"War-Risk Clauses", "Expert advisory on war-risk clauses and insurance matters for vessels operating in sensitive regions."},
	{"Market Analysis", "Real-time market intelligence, freight rate analysis, and strategic advisory services to optimize your shipping decisions."},
	{"MENA Expertise", "Deep regional knowledge of Middle East and North African markets, regulations, and business practices."},
}

// FormView is everything needed to render one multi-step form.
type FormView struct {
	Def    *core.Definition
	State  core.FormState
	Action string
}

func (v FormView) value(name string) string {
	switch x := v.State.Values[name].(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func (v FormView) checked(name string) bool {
	b, _ := v.State.Values[name].(bool)
	return b
}

func (v FormView) step() core.Step {
	return v.Def.Steps[v.State.Step]
}

// defaultAction is what Enter submits: the primary button, not the first
// progress link.
func (v FormView) defaultAction() string {
	if v.State.Terminal {
		return "submit"
	}
	return "next"
}

func (v FormView) labelSuffix(f core.FieldSpec) string {
	inactive := v.State.Inactive[f.Name]
	switch {
	case f.DependsOn != nil && !inactive && f.Required:
		return " *"
	case f.DependsOn != nil:
		return " (optional)"
	case f.Required || f.MustBeTrue:
		return " *"
	}
	return ""
}

func (v FormView) completedTitle() string {
	if v.Def.Messages.CompletedTitle != "" {
		return v.Def.Messages.CompletedTitle
	}
	return v.Def.Messages.Success
}

func stepLabel(st core.StepStatus) string {
	return strconv.Itoa(st.Index+1) + ". " + st.Name
}

func inputType(k core.FieldKind) string {
	switch k {
	case core.KindEmail:
		return "email"
	case core.KindTel:
		return "tel"
	case core.KindDate:
		return "date"
	}
	// Numbers stay text so "5,000" survives the browser.
	return "text"
}

// Credentials is the state of the sign-in and sign-up forms.
type Credentials struct {
	Email string
	Next  string
	Error string
}

type credentialsCopy struct {
	heading, action       string
	altText, altHref, alt string
}

var (
	signInCopy = credentialsCopy{"Sign in", "/sign-in", "Don't have an account?", "/sign-up", "Create one"}
	signUpCopy = credentialsCopy{"Create an account", "/sign-up", "Already registered?", "/sign-in", "Sign in"}
)

// altLink points at the other credentials form, keeping the redirect.
func (c Credentials) altLink(base string) string {
	if c.Next == "" {
		return base
	}
	return base + "?next=" + url.QueryEscape(c.Next)
}

// Stat is one dashboard counter.
type Stat struct {
	Label string
	Value int64
	Href  string
}

// Dashboard is the signed-in overview.
type Dashboard struct {
	Email string
	Stats []Stat
	Error string
}

// Fragment renders components one after another, for partial responses.
func Fragment(parts ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, p := range parts {
			if err := p.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}
