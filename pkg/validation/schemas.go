package validation

import (
	"encoding/json"
	"strings"

	pkgerrors "github.com/angelmondragon/eventix-edge/pkg/errors"
	"github.com/shopspring/decimal"
)

// Schema names accepted by Decode.
const (
	SchemaRegistration = "registration"
	SchemaLogin        = "login"
	SchemaProfile      = "profile"
	SchemaCheckout     = "checkout"
	SchemaTheme        = "theme"
	SchemaJSON         = "json"
)

type Registration struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,strongpassword"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,bdphone"`
	DateOfBirth string `json:"date_of_birth,omitempty" validate:"omitempty,birthdate,minage=13"`
	Gender      string `json:"gender,omitempty" validate:"omitempty,gender"`
}

type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileUpdate struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=100"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,bdphone"`
	DateOfBirth string `json:"date_of_birth,omitempty" validate:"omitempty,birthdate,minage=13"`
	Gender      string `json:"gender,omitempty" validate:"omitempty,gender"`
}

type CheckoutItem struct {
	TicketTypeID string `json:"ticket_type_id" validate:"required"`
	Quantity     int    `json:"quantity" validate:"min=1,max=10"`
}

type Checkout struct {
	BuyerName       string         `json:"buyer_name" validate:"required,min=2,max=100"`
	BuyerEmail      string         `json:"buyer_email" validate:"required,email"`
	Items           []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	DiscountCode    string         `json:"discount_code,omitempty" validate:"omitempty,max=50"`
	PaymentProvider string         `json:"payment_provider" validate:"required,paymentprovider"`
}

type Theme struct {
	Name            string           `json:"name" validate:"required,min=2"`
	Description     string           `json:"description" validate:"required,min=10"`
	Category        string           `json:"category" validate:"required,themecategory"`
	Price           *decimal.Decimal `json:"price" validate:"required,gte=0"`
	ThumbnailURL    string           `json:"thumbnail_url,omitempty" validate:"omitempty,url"`
	PrimaryColor    string           `json:"primary_color" validate:"required,hexcolor36"`
	SecondaryColor  string           `json:"secondary_color" validate:"required,hexcolor36"`
	BackgroundColor string           `json:"background_color" validate:"required,hexcolor36"`
	TextColor       string           `json:"text_color" validate:"required,hexcolor36"`
	HeadingFont     string           `json:"heading_font" validate:"required"`
	BodyFont        string           `json:"body_font" validate:"required"`
	IsPremium       bool             `json:"is_premium"`
}

// JSONText wraps a free-form JSON text field.
type JSONText struct {
	Value string `json:"value" validate:"required,json"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (v *Validator) Registration(in Registration) (Registration, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	if err := v.Struct(&in); err != nil {
		return Registration{}, err
	}
	in.Email = normalizeEmail(in.Email)
	return in, nil
}

func (v *Validator) Login(in Login) (Login, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := v.Struct(&in); err != nil {
		return Login{}, err
	}
	in.Email = normalizeEmail(in.Email)
	return in, nil
}

func (v *Validator) ProfileUpdate(in ProfileUpdate) (ProfileUpdate, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	if err := v.Struct(&in); err != nil {
		return ProfileUpdate{}, err
	}
	return in, nil
}

func (v *Validator) Checkout(in Checkout) (Checkout, error) {
	in.BuyerName = strings.TrimSpace(in.BuyerName)
	in.BuyerEmail = strings.TrimSpace(in.BuyerEmail)
	in.DiscountCode = strings.TrimSpace(in.DiscountCode)
	for i := range in.Items {
		in.Items[i].TicketTypeID = strings.TrimSpace(in.Items[i].TicketTypeID)
	}
	if err := v.Struct(&in); err != nil {
		return Checkout{}, err
	}
	in.BuyerEmail = normalizeEmail(in.BuyerEmail)
	return in, nil
}

func (v *Validator) Theme(in Theme) (Theme, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.ThumbnailURL = strings.TrimSpace(in.ThumbnailURL)
	in.HeadingFont = strings.TrimSpace(in.HeadingFont)
	in.BodyFont = strings.TrimSpace(in.BodyFont)
	if err := v.Struct(&in); err != nil {
		return Theme{}, err
	}
	return in, nil
}

// JSONText reports whether text is well-formed JSON.
func (v *Validator) JSONText(text string) error {
	return v.Var("value", text, "required,json")
}

// Decode unmarshals raw into the named schema and validates it.
func (v *Validator) Decode(schema string, raw []byte) (any, error) {
	switch strings.ToLower(strings.TrimSpace(schema)) {
	case SchemaRegistration:
		var in Registration
		if err := unmarshal(raw, &in); err != nil {
			return nil, err
		}
		return v.Registration(in)
	case SchemaLogin:
		var in Login
		if err := unmarshal(raw, &in); err != nil {
			return nil, err
		}
		return v.Login(in)
	case SchemaProfile:
		var in ProfileUpdate
		if err := unmarshal(raw, &in); err != nil {
			return nil, err
		}
		return v.ProfileUpdate(in)
	case SchemaCheckout:
		var in Checkout
		if err := unmarshal(raw, &in); err != nil {
			return nil, err
		}
		return v.Checkout(in)
	case SchemaTheme:
		var in Theme
		if err := unmarshal(raw, &in); err != nil {
			return nil, err
		}
		return v.Theme(in)
	case SchemaJSON:
		var in JSONText
		if err := unmarshal(raw, &in); err != nil {
			return nil, err
		}
		if err := v.JSONText(in.Value); err != nil {
			return nil, err
		}
		return in, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown validation schema "+schema)
	}
}

func unmarshal(raw []byte, dest any) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails([]FieldError{{Field: "body", Message: err.Error()}})
	}
	return nil
}
