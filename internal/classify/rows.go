package classify

import (
	"strings"
	"time"

	"github.com/lfreitas-dev/hrbridge/internal/feed"
)

// Downstream field layouts. Column order is part of the target import
// contract; headers are lower-cased at CSV encoding time.

// EmployeeRow is the active-category downstream record.
type EmployeeRow struct {
	KeyField      string
	Name          string
	CPF           string
	EmployeeNo    string
	PIS           string
	AdmissionDate string
	Email         string
	Street        string
	District      string
	City          string
	State         string
	ZipCode       string
	Login         string
	CompanyCode   string
	LegacyCompany string
	Salary        string
	BirthDate     string
	MotherName    string
	FatherName    string
	MaritalStatus string
	UnitCode      string
	RoleCode      string
	RoleName      string
}

// AbsenceRow is the vacation/leave downstream record. Both categories share
// the layout; they differ in absence id and note.
type AbsenceRow struct {
	AbsenceID  string
	Start      string
	End        string
	Note       string
	EmployeeNo string
}

// employeeHeader fixes the active-category column order.
var employeeHeader = []string{
	"campo_chave", "nome", "cpf", "matricula", "pis", "dtadmissao",
	"email", "endereco", "bairro", "cidade", "uf", "cep", "login",
	"cod_empresa", "codigo_legado_empresa", "salario", "dtnascimento",
	"nome_mae", "nome_pai", "estado_civil", "codigo_unidade",
	"codigo_cargo", "nome_cargo",
}

// absenceHeader fixes the vacation/leave column order.
var absenceHeader = []string{
	"id-afastamento", "dtinicio", "dtfim", "obs", "campo_chave", "matricula",
}

// terminationHeader fixes the termination column order.
var terminationHeader = []string{
	"matricula", "data_demissao", "obs", "nome", "data_aviso",
	"data_ultimo_dia_trabalhado", "data_acerto", "motivo", "local_exame",
	"opcao_empregado", "tipo_aviso", "devolveu_cracha", "dias_indenizados",
	"data_exame",
}

// EmployeeTable renders active rows as an ordered column table.
func EmployeeTable(rows []EmployeeRow) ([]string, [][]string) {
	body := make([][]string, 0, len(rows))
	for _, r := range rows {
		body = append(body, []string{
			r.KeyField, r.Name, r.CPF, r.EmployeeNo, r.PIS,
			r.AdmissionDate, r.Email, r.Street, r.District, r.City,
			r.State, r.ZipCode, r.Login, r.CompanyCode, r.LegacyCompany,
			r.Salary, r.BirthDate, r.MotherName, r.FatherName,
			r.MaritalStatus, r.UnitCode, r.RoleCode, r.RoleName,
		})
	}
	return employeeHeader, body
}

// AbsenceTable renders vacation or leave rows as an ordered column table.
// The key field is always the registration number for absences.
func AbsenceTable(rows []AbsenceRow) ([]string, [][]string) {
	body := make([][]string, 0, len(rows))
	for _, r := range rows {
		body = append(body, []string{
			r.AbsenceID, r.Start, r.End, r.Note, "matricula", r.EmployeeNo,
		})
	}
	return absenceHeader, body
}

// TerminationTable renders termination events with the derived dates the
// target requires: notice 30 days before the event, last worked day on the
// event date, settlement 10 days after. Events without a parsable date fall
// back to now as the base. The fixed literals mirror what the target's
// manual import screen fills in.
func TerminationTable(events []TerminationEvent, now time.Time) ([]string, [][]string) {
	body := make([][]string, 0, len(events))
	for _, ev := range events {
		base, ok := feed.ParseISODate(ev.DateISO)
		if !ok {
			base = now
		}
		const layout = "02/01/2006"
		body = append(body, []string{
			ev.EmployeeNo,
			base.Format(layout),
			"Demissao",
			ev.FullName,
			base.AddDate(0, 0, -30).Format(layout),
			base.Format(layout),
			base.AddDate(0, 0, 10).Format(layout),
			"Demissão",
			"",
			"",
			"Indenizado",
			"Sim",
			"0",
			"",
		})
	}
	return terminationHeader, body
}

// employeeRow maps one feed record to the active-category layout. Missing
// fields degrade to empty strings; a record is never dropped for incomplete
// personal data.
func (c *Classifier) employeeRow(rec *feed.EmployeeRecord) EmployeeRow {
	contact := rec.Contact()

	var phys feed.PhysicalPerson
	if rec.Physical != nil {
		phys = *rec.Physical
	}
	var contract feed.ContractDetails
	if rec.Contract != nil {
		contract = *rec.Contract
	}

	cpf := PadCPF(phys.CPF.String())
	pis := phys.PIS.String()
	if pis == "" {
		pis = cpf
	}

	var admission, unit string
	if rec.Job != nil {
		admission = feed.FormatDateBR(rec.Job.ContractStart)
		if rec.Job.Placement != nil {
			unit = rec.Job.Placement.UnitCode.String()
		}
	}

	keyField := c.KeyField
	if keyField == "" {
		keyField = "cpf"
	}

	return EmployeeRow{
		KeyField:      keyField,
		Name:          rec.FullName,
		CPF:           cpf,
		EmployeeNo:    rec.Key(),
		PIS:           pis,
		AdmissionDate: admission,
		Email:         contact.Email,
		Street:        contact.Street,
		District:      contact.District,
		City:          contact.City,
		State:         contact.State,
		ZipCode:       contact.ZipCode,
		Login:         cpf,
		CompanyCode:   rec.CompanyCode.String(),
		LegacyCompany: rec.CompanyCode.String(),
		Salary:        feed.FormatSalary(contract.Salary),
		BirthDate:     feed.FormatDateBR(phys.BirthDate),
		MotherName:    phys.MotherName,
		FatherName:    phys.FatherName,
		MaritalStatus: maritalStatusLabel(phys.MaritalStatus),
		UnitCode:      unit,
		RoleCode:      contract.RoleCode.String(),
		RoleName:      contract.RoleDescription,
	}
}

// PadCPF left-pads a CPF to its canonical 11 digits. The feed drops leading
// zeros when it serializes the number numerically.
func PadCPF(cpf string) string {
	cpf = strings.TrimSpace(cpf)
	if cpf == "" {
		return ""
	}
	if len(cpf) >= 11 {
		return cpf
	}
	return strings.Repeat("0", 11-len(cpf)) + cpf
}

// maritalStatusLabel expands the feed's single-letter civil status.
func maritalStatusLabel(code string) string {
	switch code {
	case "S":
		return "Solteiro"
	case "C":
		return "Casado"
	default:
		return ""
	}
}
