package srvreg

import (
	"net/http"
	"time"

	"github.com/ahmadzakiakmal/insurance-ledger/capability"
	"github.com/ahmadzakiakmal/insurance-ledger/chain"
	"github.com/ahmadzakiakmal/insurance-ledger/repository/models"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// policyTerm is the length of a newly issued policy
const policyTerm = 365 * 24 * time.Hour

// onChain pairs a created record with its receipt in the transaction payload
type onChain[T any] struct {
	Record  T               `json:"record"`
	Receipt *models.Receipt `json:"receipt"`
}

// ledgerResponse is returned by every write endpoint
type ledgerResponse struct {
	Message     string             `json:"message"`
	Record      any                `json:"record"`
	Receipt     *models.Receipt    `json:"receipt"`
	Transaction models.Transaction `json:"transaction"`
}

// recordTransaction journals tx for an already stored record. The record and
// its transaction are independent appends.
func (sr *ServiceRegistry) recordTransaction(message string, record any, receipt *models.Receipt, tx models.Transaction) *Response {
	if rerr := sr.deps.Repository.AddTransaction(tx); rerr != nil {
		sr.logger.Error("Failed to record transaction", "tx_id", tx.ID, "err", rerr)
		return repositoryErrorResponse(rerr)
	}
	return jsonResponse(http.StatusCreated, ledgerResponse{
		Message:     message,
		Record:      record,
		Receipt:     receipt,
		Transaction: tx,
	})
}

// ListVehiclesHandler lists the vehicles visible to the current participant.
// Owners see their own vehicles, every other role sees all of them.
func (sr *ServiceRegistry) ListVehiclesHandler(req *Request) (*Response, error) {
	p, _, resp := sr.authorize("")
	if resp != nil {
		return resp, nil
	}

	vehicles := sr.deps.Repository.Vehicles()
	if p.Role == models.RoleVehicleOwner {
		vehicles = sr.deps.Repository.VehiclesOwnedBy(p.ID)
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"vehicles": vehicles}), nil
}

// RegisterVehicleHandler registers a vehicle owned by the current participant
func (sr *ServiceRegistry) RegisterVehicleHandler(req *Request) (*Response, error) {
	p, _, resp := sr.authorize(capability.RegisterVehicle)
	if resp != nil {
		return resp, nil
	}

	var body struct {
		VIN                string `json:"vin"`
		Make               string `json:"make"`
		Model              string `json:"model"`
		Year               int    `json:"year"`
		RegistrationNumber string `json:"registration_number"`
	}
	if resp := sr.forms.bind(formVehicle, req.Body, &body); resp != nil {
		return resp, nil
	}

	factory := sr.deps.Repository.Factory()
	vehicle := models.Vehicle{
		ID:                 factory.EntityID("vehicle", body.VIN),
		VIN:                body.VIN,
		Make:               body.Make,
		Model:              body.Model,
		Year:               body.Year,
		OwnerID:            p.ID,
		RegistrationNumber: body.RegistrationNumber,
	}

	receipt, rerr := sr.deps.Repository.AddVehicle(req.Context(), vehicle)
	if rerr != nil {
		return repositoryErrorResponse(rerr), nil
	}

	tx := factory.NewTransaction(models.TxRegisterVehicle, p.ID, onChain[models.Vehicle]{Record: vehicle, Receipt: receipt})
	return sr.recordTransaction("Vehicle registered successfully", vehicle, receipt, tx), nil
}

// ValidateInsuranceHandler checks whether a vehicle holds an active policy
func (sr *ServiceRegistry) ValidateInsuranceHandler(req *Request) (*Response, error) {
	if _, _, resp := sr.authorize(capability.ValidateInsurance); resp != nil {
		return resp, nil
	}

	vehicleID := pathSegment(req.Path, 2)
	result := sr.deps.Validator.Validate(vehicleID)
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"vehicle_id": vehicleID,
		"result":     result,
	}), nil
}

// PolicyLookupHandler returns the contract-style policy view of a vehicle
func (sr *ServiceRegistry) PolicyLookupHandler(req *Request) (*Response, error) {
	if _, _, resp := sr.authorize(""); resp != nil {
		return resp, nil
	}

	vehicleID := pathSegment(req.Path, 2)
	info := sr.deps.Validator.Lookup(vehicleID)
	if !info.Found {
		return errorResponse(http.StatusNotFound, "No policy recorded for vehicle "+vehicleID), nil
	}
	return jsonResponse(http.StatusOK, info), nil
}

// ListPoliciesHandler lists policies in the role's scope
func (sr *ServiceRegistry) ListPoliciesHandler(req *Request) (*Response, error) {
	p, caps, resp := sr.authorize("")
	if resp != nil {
		return resp, nil
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"policies": sr.deps.Repository.PoliciesFor(caps.PolicyScope, p.ID),
	}), nil
}

// CreatePolicyHandler issues a one-year policy with the current participant as insurer
func (sr *ServiceRegistry) CreatePolicyHandler(req *Request) (*Response, error) {
	p, _, resp := sr.authorize(capability.CreatePolicy)
	if resp != nil {
		return resp, nil
	}

	var body struct {
		VehicleID      string          `json:"vehicle_id"`
		CoverageAmount decimal.Decimal `json:"coverage_amount"`
		Premium        decimal.Decimal `json:"premium"`
		CoverageType   []string        `json:"coverage_type"`
	}
	if resp := sr.forms.bind(formPolicy, req.Body, &body); resp != nil {
		return resp, nil
	}

	vehicle, ok := sr.deps.Repository.GetVehicle(body.VehicleID)
	if !ok {
		return errorResponse(http.StatusNotFound, "Vehicle not found"), nil
	}

	coverageType := body.CoverageType
	if len(coverageType) == 0 {
		coverageType = []string{"Liability"}
	}

	factory := sr.deps.Repository.Factory()
	now := factory.Simulator().Now().UTC()
	policy := models.InsurancePolicy{
		ID:             factory.EntityID("policy", vehicle.ID),
		VehicleID:      vehicle.ID,
		OwnerID:        vehicle.OwnerID,
		InsurerID:      p.ID,
		PolicyNumber:   factory.Simulator().PolicyNumber(now),
		StartDate:      now.Format(dateLayout),
		EndDate:        now.Add(policyTerm).Format(dateLayout),
		CoverageAmount: body.CoverageAmount,
		Premium:        body.Premium,
		Status:         models.PolicyActive,
		CoverageType:   coverageType,
	}

	receipt, rerr := sr.deps.Repository.AddInsurancePolicy(req.Context(), policy)
	if rerr != nil {
		return repositoryErrorResponse(rerr), nil
	}

	tx := factory.NewTransaction(models.TxRegisterInsurance, p.ID,
		onChain[models.InsurancePolicy]{Record: policy, Receipt: receipt}, vehicle.OwnerID)
	return sr.recordTransaction("Insurance policy created successfully", policy, receipt, tx), nil
}

// EstimatePolicyHandler estimates the gas of issuing a policy
func (sr *ServiceRegistry) EstimatePolicyHandler(req *Request) (*Response, error) {
	var body struct {
		CoverageAmount decimal.Decimal `json:"coverage_amount"`
	}
	if resp := sr.forms.bind(formEstimate, req.Body, &body); resp != nil {
		return resp, nil
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"coverage_amount": body.CoverageAmount,
		"estimated_gas":   chain.EstimatePolicyGas(body.CoverageAmount),
	}), nil
}

// ListAccidentsHandler lists accident reports in the role's scope
func (sr *ServiceRegistry) ListAccidentsHandler(req *Request) (*Response, error) {
	p, caps, resp := sr.authorize("")
	if resp != nil {
		return resp, nil
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"accident_reports": sr.deps.Repository.AccidentReportsFor(caps.AccidentScope, p.ID),
	}), nil
}

// ReportAccidentHandler records an accident with its evidence documents
func (sr *ServiceRegistry) ReportAccidentHandler(req *Request) (*Response, error) {
	p, _, resp := sr.authorize(capability.ReportAccident)
	if resp != nil {
		return resp, nil
	}

	var body struct {
		VehicleID   string   `json:"vehicle_id"`
		Location    string   `json:"location"`
		Description string   `json:"description"`
		Severity    string   `json:"severity"`
		Witnesses   []string `json:"witnesses"`
		Documents   []struct {
			FileName     string `json:"file_name"`
			Content      string `json:"content"`
			DocumentType string `json:"document_type"`
		} `json:"documents"`
	}
	if resp := sr.forms.bind(formAccident, req.Body, &body); resp != nil {
		return resp, nil
	}

	severity := models.Severity(body.Severity)
	if severity == "" {
		severity = models.SeverityMinor
	}
	witnesses := body.Witnesses
	if witnesses == nil {
		witnesses = []string{}
	}

	factory := sr.deps.Repository.Factory()
	documents := make([]models.DocumentHash, 0, len(body.Documents))
	for _, doc := range body.Documents {
		docType := doc.DocumentType
		if docType == "" {
			docType = chain.DefaultDocumentType
		}
		documents = append(documents, factory.DigestDocument(doc.FileName, []byte(doc.Content), p.ID, docType))
	}

	report := models.AccidentReport{
		ID:           factory.EntityID("accident", body.VehicleID),
		VehicleID:    body.VehicleID,
		ReporterID:   p.ID,
		ReporterRole: p.Role,
		Location:     body.Location,
		DateTime:     chain.FormatTimestamp(factory.Simulator().Now()),
		Description:  body.Description,
		Severity:     severity,
		Witnesses:    witnesses,
		Documents:    documents,
		Status:       models.AccidentReported,
	}

	receipt, rerr := sr.deps.Repository.AddAccidentReport(req.Context(), report)
	if rerr != nil {
		return repositoryErrorResponse(rerr), nil
	}

	tx := factory.NewTransaction(models.TxReportAccident, p.ID,
		onChain[models.AccidentReport]{Record: report, Receipt: receipt}, witnesses...)
	return sr.recordTransaction("Accident report created successfully", report, receipt, tx), nil
}

// ListRepairsHandler lists repair records in the role's scope
func (sr *ServiceRegistry) ListRepairsHandler(req *Request) (*Response, error) {
	p, caps, resp := sr.authorize("")
	if resp != nil {
		return resp, nil
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"repair_records": sr.deps.Repository.RepairRecordsFor(caps.RepairScope, p.ID),
	}), nil
}

// CreateRepairHandler records a repair estimate signed by the repair shop
func (sr *ServiceRegistry) CreateRepairHandler(req *Request) (*Response, error) {
	p, _, resp := sr.authorize(capability.CreateRepair)
	if resp != nil {
		return resp, nil
	}

	var body struct {
		AccidentReportID string          `json:"accident_report_id"`
		EstimatedCost    decimal.Decimal `json:"estimated_cost"`
		Description      string          `json:"description"`
	}
	if resp := sr.forms.bind(formRepair, req.Body, &body); resp != nil {
		return resp, nil
	}

	accident, ok := sr.deps.Repository.GetAccidentReport(body.AccidentReportID)
	if !ok {
		return errorResponse(http.StatusNotFound, "Accident report not found"), nil
	}

	factory := sr.deps.Repository.Factory()
	now := chain.FormatTimestamp(factory.Simulator().Now())
	record := models.RepairRecord{
		ID:               factory.EntityID("repair", accident.ID),
		VehicleID:        accident.VehicleID,
		AccidentReportID: accident.ID,
		RepairShopID:     p.ID,
		EstimatedCost:    body.EstimatedCost,
		StartDate:        now,
		Status:           models.RepairEstimated,
		Approvals: []models.Approval{{
			ApproverID:   p.ID,
			ApproverRole: p.Role,
			Timestamp:    now,
			Signature:    chain.GenerateSignature(accident.ID+body.EstimatedCost.String(), "repair_shop_key"),
			Status:       models.ApprovalApproved,
			Comments:     "Initial repair estimate created",
		}},
		Documents: []models.DocumentHash{},
	}

	receipt, rerr := sr.deps.Repository.AddRepairRecord(req.Context(), record)
	if rerr != nil {
		return repositoryErrorResponse(rerr), nil
	}

	tx := factory.NewTransaction(models.TxRepairVehicle, p.ID,
		onChain[models.RepairRecord]{Record: record, Receipt: receipt}, accident.ReporterID)
	return sr.recordTransaction("Repair record created successfully", record, receipt, tx), nil
}

// ApproveRepairHandler signs a repair record on behalf of the current participant
func (sr *ServiceRegistry) ApproveRepairHandler(req *Request) (*Response, error) {
	p, _, resp := sr.authorize(capability.ApproveRepair)
	if resp != nil {
		return resp, nil
	}

	var body struct {
		Comments string `json:"comments"`
		Reject   bool   `json:"reject"`
	}
	if resp := sr.forms.bind(formApproval, req.Body, &body); resp != nil {
		return resp, nil
	}

	repairID := pathSegment(req.Path, 2)
	factory := sr.deps.Repository.Factory()

	status, action := models.ApprovalApproved, "approve"
	if body.Reject {
		status, action = models.ApprovalRejected, "reject"
	}
	approval := models.Approval{
		ApproverID:   p.ID,
		ApproverRole: p.Role,
		Timestamp:    chain.FormatTimestamp(factory.Simulator().Now()),
		Signature:    chain.GenerateSignature(repairID+action, sr.signerKey(p)),
		Status:       status,
		Comments:     body.Comments,
	}

	record, receipt, rerr := sr.deps.Repository.ApproveRepair(req.Context(), repairID, approval, sr.deps.RequiredApprovals)
	if rerr != nil {
		return repositoryErrorResponse(rerr), nil
	}

	payload := map[string]interface{}{
		"repair_id": repairID,
		"action":    action,
		"receipt":   receipt,
	}
	tx := factory.NewTransaction(models.TxApproveClaim, p.ID, payload, record.RepairShopID)
	return sr.recordTransaction("Repair approval recorded", record, receipt, tx), nil
}

// ListTransactionsHandler lists transactions the current participant takes part in, newest first
func (sr *ServiceRegistry) ListTransactionsHandler(req *Request) (*Response, error) {
	p, _, resp := sr.authorize("")
	if resp != nil {
		return resp, nil
	}

	txs, rerr := sr.deps.Repository.TransactionsFor(p.ID)
	if rerr != nil {
		return repositoryErrorResponse(rerr), nil
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"transactions": txs}), nil
}

// GetTransactionHandler returns one transaction
func (sr *ServiceRegistry) GetTransactionHandler(req *Request) (*Response, error) {
	tx, rerr := sr.deps.Repository.GetTransaction(pathSegment(req.Path, 2))
	if rerr != nil {
		return repositoryErrorResponse(rerr), nil
	}
	return jsonResponse(http.StatusOK, tx), nil
}

// DashboardHandler returns the overview counters and the tabs of the current role
func (sr *ServiceRegistry) DashboardHandler(req *Request) (*Response, error) {
	p, caps, resp := sr.authorize("")
	if resp != nil {
		return resp, nil
	}

	overview, rerr := sr.deps.Repository.Overview(p.ID)
	if rerr != nil {
		return repositoryErrorResponse(rerr), nil
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"participant": p,
		"overview":    overview,
		"views":       caps.Views,
		"actions":     caps.Actions,
	}), nil
}
