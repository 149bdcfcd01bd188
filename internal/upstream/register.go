package upstream

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/koorier/onboarding-api/internal/enum"
	"github.com/koorier/onboarding-api/internal/wizard"
)

// RegistrationPayload is the account creation request. Personal and business
// data are merged with the fixed defaults the upstream contract requires.
type RegistrationPayload struct {
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	Email        string   `json:"email"`
	Login        string   `json:"login"`
	TempPassword string   `json:"tempPassword"`
	TfaEnabled   bool     `json:"tfaEnabled"`
	Authorities  []string `json:"authorities"`
	Activated    bool     `json:"activated"`

	DistributionCenterResponseVm distributionCenterVm `json:"distributionCenterResponseVm"`

	BusinessName       string   `json:"businessName"`
	DCName             string   `json:"dcName"`
	ClientCode         string   `json:"clientCode"`
	CompanyCode        string   `json:"companyCode"`
	ServiceDays        []string `json:"serviceDays"`
	DeliveryDateBuffer int      `json:"deliveryDateBuffer"`
	EligibilityDay     int      `json:"eligibilityDay"`
	ExpectedManifests  int      `json:"expectedManifests"`
	ManifestCutoffTime string   `json:"manifestCutoffTime"`
	BusinessEmail      string   `json:"businessEmail"`
	AddressOne         string   `json:"addressOne"`
	AddressTwo         string   `json:"addressTwo"`
	City               string   `json:"city"`
	Province           string   `json:"province"`
	PostalCode         string   `json:"postalCode"`
	ServiceFsaZones    []string `json:"serviceFsaZones"`
}

type distributionCenterVm struct {
	DCName string `json:"dcName"`
}

var defaultServiceDays = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"}

// BuildRegistrationPayload merges the collected wizard data with the fixed
// registration defaults and derives the client and company codes.
func BuildRegistrationPayload(personal wizard.PersonalInfo, business wizard.BusinessInfo) RegistrationPayload {
	return RegistrationPayload{
		FirstName:    personal.FirstName,
		LastName:     personal.LastName,
		Email:        personal.Email,
		Login:        personal.UserName,
		TempPassword: personal.Password,
		TfaEnabled:   false,
		Authorities:  []string{enum.RoleClientDTS},
		Activated:    true,

		DistributionCenterResponseVm: distributionCenterVm{DCName: business.DCName},

		BusinessName:       business.BusinessName,
		DCName:             business.DCName,
		ClientCode:         DeriveCode(business.BusinessName, 3, 4),
		CompanyCode:        DeriveCode(business.BusinessName, 4, 3),
		ServiceDays:        defaultServiceDays,
		DeliveryDateBuffer: enum.DefaultDeliveryDateBuffer,
		EligibilityDay:     enum.DefaultEligibilityDay,
		ExpectedManifests:  enum.DefaultExpectedManifests,
		ManifestCutoffTime: enum.DefaultManifestCutoffTime,
		BusinessEmail:      business.Email,
		AddressOne:         business.AddressOne,
		AddressTwo:         business.AddressTwo,
		City:               business.City,
		Province:           business.Province,
		PostalCode:         business.PostalCode,
		ServiceFsaZones:    business.ServiceFsaZones,
	}
}

// DeriveCode builds a client or company code from an upper-cased business
// name prefix and a random suffix. The upstream only requires the codes to be
// distinct per registration attempt; randomness comes from a UUID rather
// than timestamp digits so that simultaneous registrations of similarly named
// businesses cannot collide.
func DeriveCode(businessName string, prefixLen, suffixLen int) string {
	prefix := strings.ToUpper(strings.TrimSpace(businessName))
	if len(prefix) > prefixLen {
		prefix = prefix[:prefixLen]
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return prefix + suffix[:suffixLen]
}

// registrationResponse tolerates string or numeric identifiers.
type registrationResponse struct {
	AccountID    flexString `json:"accountId"`
	CustomerID   flexString `json:"customerId"`
	UserID       flexString `json:"userId"`
	ID           flexString `json:"id"`
	Email        string     `json:"email"`
	BusinessName string     `json:"businessName"`
}

func (r registrationResponse) toAccount() wizard.AccountResponse {
	return wizard.AccountResponse{
		AccountID:    string(r.AccountID),
		CustomerID:   string(r.CustomerID),
		UserID:       string(r.UserID),
		ID:           string(r.ID),
		Email:        r.Email,
		BusinessName: r.BusinessName,
	}
}

// Register creates the client account. Non-2xx responses come back as
// *APIError for the error mapper; the request is issued exactly once, retries
// are the user's explicit action.
func (c *Client) Register(ctx context.Context, payload RegistrationPayload) (wizard.AccountResponse, error) {
	var resp registrationResponse
	err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/dts-client/register", payload, &resp)
	if err != nil {
		return wizard.AccountResponse{}, err
	}
	return resp.toAccount(), nil
}
