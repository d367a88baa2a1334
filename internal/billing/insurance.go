package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

var ErrInsuranceUnavailable = errors.New("insurance validation service unavailable")

// InsuranceValidator is the synchronous boundary to the external insurance
// collaborator. Best effort: the billing service downgrades any failure to
// "not validated" rather than failing the payment flow.
type InsuranceValidator interface {
	Validate(ctx context.Context, patientID uuid.UUID, info InsuranceInfo) (*Validation, error)
}

type HTTPInsuranceValidator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPInsuranceValidator(baseURL string, timeout time.Duration) *HTTPInsuranceValidator {
	return &HTTPInsuranceValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type insuranceResponse struct {
	Status   string `json:"estado"`
	Insurer  string `json:"nombreAseguradora"`
	Policy   string `json:"numeroPoliza"`
	Coverage string `json:"cobertura"`
}

func (v *HTTPInsuranceValidator) Validate(ctx context.Context, patientID uuid.UUID, info InsuranceInfo) (*Validation, error) {
	endpoint := fmt.Sprintf("%s/validar/paciente/%s", v.baseURL, patientID)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsuranceUnavailable, err)
	}
	q := u.Query()
	q.Set("aseguradora", info.Insurer)
	q.Set("poliza", info.PolicyNumber)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsuranceUnavailable, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsuranceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrInsuranceUnavailable, resp.StatusCode)
	}

	var body insuranceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsuranceUnavailable, err)
	}

	return &Validation{
		Valid:    body.Status == "Válido",
		Insurer:  body.Insurer,
		Policy:   body.Policy,
		Coverage: body.Coverage,
	}, nil
}

// StaticInsuranceValidator answers from a fixed table; tests and the
// simulator use it.
type StaticInsuranceValidator struct {
	ValidPatients map[uuid.UUID]Validation
	Err           error
}

func (v *StaticInsuranceValidator) Validate(_ context.Context, patientID uuid.UUID, _ InsuranceInfo) (*Validation, error) {
	if v.Err != nil {
		return nil, v.Err
	}
	if val, ok := v.ValidPatients[patientID]; ok {
		return &val, nil
	}
	return &Validation{Valid: false}, nil
}
