package fiscal

const (
	TaxTypeIVA          = "iva"
	TaxTypeINSSEmployee = "inss_employee"
	TaxTypeINSSEmployer = "inss_employer"
	TaxTypeIRPS         = "irps"
	TaxTypeWithholding  = "withholding"

	ApplicableToInvoices  = "invoices"
	ApplicableToSalaries  = "salaries"
	ApplicableToSuppliers = "suppliers"
	ApplicableToAll       = "all"

	RetentionStatusPending  = "pending"
	RetentionStatusApplied  = "applied"
	RetentionStatusReported = "reported"
	RetentionStatusPaid     = "paid"

	DocumentTypePayslip         = "payslip"
	DocumentTypeInvoice         = "invoice"
	DocumentTypeSupplierInvoice = "supplier_invoice"
)

var TaxTypes = []string{
	TaxTypeIVA,
	TaxTypeINSSEmployee,
	TaxTypeINSSEmployer,
	TaxTypeIRPS,
	TaxTypeWithholding,
}

var RetentionStatuses = []string{
	RetentionStatusPending,
	RetentionStatusApplied,
	RetentionStatusReported,
	RetentionStatusPaid,
}

// statusRank orders the retention lifecycle; transitions may only move
// forward one step at a time.
var statusRank = map[string]int{
	RetentionStatusPending:  0,
	RetentionStatusApplied:  1,
	RetentionStatusReported: 2,
	RetentionStatusPaid:     3,
}
