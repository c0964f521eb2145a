// Package contracts describes the smart contracts the ledger stands in for.
// Nothing here is ever invoked.
package contracts

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// InsuranceContractAddress is the address the insurance contract would be deployed at
const InsuranceContractAddress = "0x742d35Cc6634C0532925a3b8D332c3AB8CB890d3"

//go:embed abi/insurance.json
var insuranceABI []byte

//go:embed abi/vehicle_registry.json
var vehicleRegistryABI []byte

// Param is one ABI input or output
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Function is one ABI function entry
type Function struct {
	Name            string  `json:"name"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs"`
	StateMutability string  `json:"stateMutability"`
	Type            string  `json:"type"`
}

// Contract is a named ABI
type Contract struct {
	Name      string     `json:"name"`
	Address   string     `json:"address,omitempty"`
	Functions []Function `json:"abi"`
}

// Function returns the named function
func (c Contract) Function(name string) (Function, bool) {
	for _, f := range c.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// Load parses the embedded ABIs
func Load() ([]Contract, error) {
	insurance, err := parse("InsuranceContract", InsuranceContractAddress, insuranceABI)
	if err != nil {
		return nil, err
	}
	registry, err := parse("VehicleRegistry", "", vehicleRegistryABI)
	if err != nil {
		return nil, err
	}
	return []Contract{insurance, registry}, nil
}

func parse(name, address string, raw []byte) (Contract, error) {
	var functions []Function
	if err := json.Unmarshal(raw, &functions); err != nil {
		return Contract{}, fmt.Errorf("parsing %s abi: %w", name, err)
	}
	return Contract{Name: name, Address: address, Functions: functions}, nil
}
