package capability

import (
	"github.com/ahmadzakiakmal/insurance-ledger/repository"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
)

// Action is something a participant may do
type Action string

const (
	RegisterVehicle   Action = "register_vehicle"
	CreatePolicy      Action = "create_policy"
	ValidateInsurance Action = "validate_insurance"
	ReportAccident    Action = "report_accident"
	CreateRepair      Action = "create_repair"
	ApproveRepair     Action = "approve_repair"
)

// View is a dashboard tab
type View string

const (
	ViewOverview     View = "overview"
	ViewTransactions View = "transactions"
	ViewVehicles     View = "vehicles"
	ViewInsurance    View = "insurance"
	ViewAccidents    View = "accidents"
	ViewRepairs      View = "repairs"
)

// Set is everything one role may do and see
type Set struct {
	Role          models.Role              `json:"role"`
	Actions       []Action                 `json:"actions"`
	Views         []View                   `json:"views"`
	PolicyScope   repository.PolicyScope   `json:"policy_scope"`
	AccidentScope repository.AccidentScope `json:"accident_scope"`
	RepairScope   repository.RepairScope   `json:"repair_scope"`
}

// Allows reports whether the set grants action
func (s Set) Allows(action Action) bool {
	for _, a := range s.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Shows reports whether the set includes view
func (s Set) Shows(view View) bool {
	for _, v := range s.Views {
		if v == view {
			return true
		}
	}
	return false
}

var baseViews = []View{ViewOverview, ViewTransactions}

func views(extra ...View) []View {
	return append(append([]View(nil), baseViews...), extra...)
}

var table = map[models.Role]Set{
	models.RoleVehicleOwner: {
		Actions:       []Action{RegisterVehicle, ReportAccident, ApproveRepair},
		Views:         views(ViewVehicles, ViewInsurance),
		PolicyScope:   repository.PolicyScopeOwned,
		AccidentScope: repository.AccidentScopeOwnedVehicles,
		RepairScope:   repository.RepairScopeOwnedVehicles,
	},
	models.RolePolice: {
		Actions:       []Action{ReportAccident},
		Views:         views(ViewAccidents),
		PolicyScope:   repository.PolicyScopeInsured,
		AccidentScope: repository.AccidentScopeReported,
		RepairScope:   repository.RepairScopeOwnedVehicles,
	},
	models.RoleInsurer: {
		Actions:       []Action{CreatePolicy, ValidateInsurance, ApproveRepair},
		Views:         views(ViewInsurance, ViewAccidents),
		PolicyScope:   repository.PolicyScopeInsured,
		AccidentScope: repository.AccidentScopeAll,
		RepairScope:   repository.RepairScopeOwnedVehicles,
	},
	models.RoleInsuranceAdjuster: {
		Actions:       []Action{CreatePolicy, ApproveRepair},
		Views:         views(ViewInsurance, ViewAccidents),
		PolicyScope:   repository.PolicyScopeInsured,
		AccidentScope: repository.AccidentScopeAll,
		RepairScope:   repository.RepairScopeOwnedVehicles,
	},
	models.RoleRepairShop: {
		Actions:       []Action{CreateRepair},
		Views:         views(ViewRepairs),
		PolicyScope:   repository.PolicyScopeInsured,
		AccidentScope: repository.AccidentScopeAll,
		RepairScope:   repository.RepairScopeServiced,
	},
	models.RoleClaimChecker: {
		Actions:       []Action{ValidateInsurance},
		Views:         views(),
		PolicyScope:   repository.PolicyScopeAll,
		AccidentScope: repository.AccidentScopeAll,
		RepairScope:   repository.RepairScopeOwnedVehicles,
	},
}

// For returns the capability set of role. Unlisted roles (Witness, Admin)
// only get the base views.
func For(role models.Role) Set {
	set, ok := table[role]
	if !ok {
		set = Set{
			Views:         views(),
			PolicyScope:   repository.PolicyScopeInsured,
			AccidentScope: repository.AccidentScopeAll,
			RepairScope:   repository.RepairScopeOwnedVehicles,
		}
	}
	set.Role = role
	set.Actions = append([]Action(nil), set.Actions...)
	set.Views = append([]View(nil), set.Views...)
	return set
}
