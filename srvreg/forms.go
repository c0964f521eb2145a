package srvreg

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const missingFieldsMessage = "Please fill in all required fields"

const (
	formWalletConnect = "wallet_connect"
	formWalletNetwork = "wallet_network"
	formLoginRole     = "login_role"
	formLoginAdmin    = "login_admin"
	formVehicle       = "vehicle"
	formPolicy        = "policy"
	formEstimate      = "policy_estimate"
	formAccident      = "accident"
	formRepair        = "repair"
	formApproval      = "approval"
)

var formSchemas = map[string]string{
	formWalletConnect: `{
		"type": "object",
		"required": ["address", "chain_id"],
		"properties": {
			"address": {"type": "string", "minLength": 1},
			"chain_id": {"type": "integer"},
			"balance": {"type": ["string", "number"]}
		}
	}`,
	formWalletNetwork: `{
		"type": "object",
		"required": ["chain_id"],
		"properties": {"chain_id": {"type": "integer"}}
	}`,
	formLoginRole: `{
		"type": "object",
		"required": ["participant_id"],
		"properties": {"participant_id": {"type": "string", "minLength": 1}}
	}`,
	formLoginAdmin: `{
		"type": "object",
		"required": ["username", "password"],
		"properties": {
			"username": {"type": "string", "minLength": 1},
			"password": {"type": "string", "minLength": 1}
		}
	}`,
	formVehicle: `{
		"type": "object",
		"required": ["vin", "make", "model", "year", "registration_number"],
		"properties": {
			"vin": {"type": "string", "minLength": 1},
			"make": {"type": "string", "minLength": 1},
			"model": {"type": "string", "minLength": 1},
			"year": {"type": "integer", "minimum": 1886, "maximum": 2100},
			"registration_number": {"type": "string", "minLength": 1}
		}
	}`,
	formPolicy: `{
		"type": "object",
		"required": ["vehicle_id", "coverage_amount", "premium"],
		"properties": {
			"vehicle_id": {"type": "string", "minLength": 1},
			"coverage_amount": {"type": "number", "exclusiveMinimum": 0},
			"premium": {"type": "number", "exclusiveMinimum": 0},
			"coverage_type": {"type": "array", "items": {"type": "string", "minLength": 1}}
		}
	}`,
	formEstimate: `{
		"type": "object",
		"required": ["coverage_amount"],
		"properties": {"coverage_amount": {"type": "number", "minimum": 0}}
	}`,
	formAccident: `{
		"type": "object",
		"required": ["vehicle_id", "location", "description"],
		"properties": {
			"vehicle_id": {"type": "string", "minLength": 1},
			"location": {"type": "string", "minLength": 1},
			"description": {"type": "string", "minLength": 1},
			"severity": {"enum": ["Minor", "Moderate", "Severe"]},
			"witnesses": {"type": "array", "items": {"type": "string", "minLength": 1}},
			"documents": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["file_name", "content"],
					"properties": {
						"file_name": {"type": "string", "minLength": 1},
						"content": {"type": "string"},
						"document_type": {"type": "string"}
					}
				}
			}
		}
	}`,
	formRepair: `{
		"type": "object",
		"required": ["accident_report_id", "estimated_cost"],
		"properties": {
			"accident_report_id": {"type": "string", "minLength": 1},
			"estimated_cost": {"type": "number", "exclusiveMinimum": 0},
			"description": {"type": "string"}
		}
	}`,
	formApproval: `{
		"type": "object",
		"properties": {
			"comments": {"type": "string"},
			"reject": {"type": "boolean"}
		}
	}`,
}

// formValidator checks request bodies against the compiled form schemas
type formValidator struct {
	schemas map[string]*jsonschema.Schema
}

func newFormValidator() (*formValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	for name, schema := range formSchemas {
		if err := compiler.AddResource(schemaURL(name), strings.NewReader(schema)); err != nil {
			return nil, fmt.Errorf("adding %s form schema: %w", name, err)
		}
	}

	fv := &formValidator{schemas: make(map[string]*jsonschema.Schema, len(formSchemas))}
	for name := range formSchemas {
		compiled, err := compiler.Compile(schemaURL(name))
		if err != nil {
			return nil, fmt.Errorf("compiling %s form schema: %w", name, err)
		}
		fv.schemas[name] = compiled
	}
	return fv, nil
}

func schemaURL(name string) string {
	return "https://insurance-ledger.local/forms/" + name + ".schema.json"
}

// bind validates body against form and decodes it into dst. The returned
// response is non-nil when the request must be rejected.
func (fv *formValidator) bind(form, body string, dst any) *Response {
	if strings.TrimSpace(body) == "" {
		body = "{}"
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return errorResponse(http.StatusBadRequest, fmt.Sprintf("Invalid request body: %s", err.Error()))
	}

	schema, ok := fv.schemas[form]
	if !ok {
		return errorResponse(http.StatusInternalServerError, "Unknown form "+form)
	}
	if err := schema.Validate(doc); err != nil {
		return errorResponse(http.StatusBadRequest, missingFieldsMessage)
	}

	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return errorResponse(http.StatusBadRequest, fmt.Sprintf("Invalid request body: %s", err.Error()))
	}
	return nil
}
