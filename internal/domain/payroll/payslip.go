package payroll

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
)

// WritePayslipPDF renders a payslip into dir and returns the file path.
func WritePayslipPDF(dir, payslipID string, data PayslipPDFData) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, payslipID+".pdf")

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s %s", data.FirstName, data.LastName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Email: %s", data.Email))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s", data.Period))
	pdf.Ln(10)
	pdf.Cell(0, 8, fmt.Sprintf("Gross: %s %s", data.Gross.StringFixed(2), data.Currency))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Income tax (IRPS): %s %s", data.IncomeTax.StringFixed(2), data.Currency))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Social security (INSS): %s %s", data.EmployeeSocialSecurity.StringFixed(2), data.Currency))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Total deductions: %s %s", data.TotalDeductions.StringFixed(2), data.Currency))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Net: %s %s", data.Net.StringFixed(2), data.Currency))

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", err
	}
	return path, nil
}
