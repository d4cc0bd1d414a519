package feed

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// EmployeeKeyWidth is the fixed width the source registration number is
// zero-padded to whenever it is used as a delivery key. The target system
// stores registrations left-padded, so an unpadded key would never match.
const EmployeeKeyWidth = 6

// FlexString decodes a JSON value that the upstream feed emits sometimes as a
// string and sometimes as a number (company codes, registration numbers,
// status codes). It always normalizes to the string form.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// StatusEntry is one dated status interval embedded in an employee record.
// Codes "1", "2" and "3" (after leading-zero normalization) are reserved for
// active, vacation and termination; everything else is a generic leave.
type StatusEntry struct {
	Code  FlexString `json:"sitCodSituacao"`
	Start string     `json:"sitDataInicio"`
	End   string     `json:"sitDataFim"`
}

// Person carries contact and address fields. The feed places these either at
// the record root or under the "pessoa" object, depending on export version.
type Person struct {
	Email    string `json:"pesEmail"`
	Street   string `json:"pesEndRua"`
	District string `json:"pesEndBairro"`
	City     string `json:"pesEndCidade"`
	State    string `json:"pesEndEstado"`
	ZipCode  string `json:"pesEndCep"`
}

// PhysicalPerson holds civil registry data.
type PhysicalPerson struct {
	CPF           FlexString `json:"pfiCpfnumeroDigito"`
	PIS           FlexString `json:"pfiPisnumeroDigito"`
	BirthDate     string     `json:"pfiDataNascim"`
	MotherName    string     `json:"pfiNomeMae"`
	FatherName    string     `json:"pfiNomePai"`
	MaritalStatus string     `json:"pfiEstadoCivil"`
}

// ContractDetails holds salary and role data.
type ContractDetails struct {
	Salary          json.Number `json:"pffValorSalario"`
	RoleCode        FlexString  `json:"pffCodCargo"`
	RoleDescription string      `json:"pffDescricaoCargo"`
}

// Placement is the organizational unit an employee is assigned to.
type Placement struct {
	UnitCode FlexString `json:"lotCodlotacao"`
	UnitName string     `json:"lotDenominacao"`
}

// Employment holds contract start and placement.
type Employment struct {
	ContractStart string     `json:"pfuDtInicioContrato"`
	Placement     *Placement `json:"lotacao"`
}

// EmployeeRecord is one worker as exported by the source HR feed, with the
// embedded status history driving classification. Registration numbers are
// not guaranteed unique by the feed; callers keying maps on them get
// last-write-wins semantics.
type EmployeeRecord struct {
	CompanyCode    FlexString    `json:"codEmpresa"`
	EmployeeNumber FlexString    `json:"nroMatrExterno"`
	FullName       string        `json:"nomeExtenso"`
	Statuses       []StatusEntry `json:"situacaoPessoa"`

	Person   *Person          `json:"pessoa"`
	Physical *PhysicalPerson  `json:"pessoaFisica"`
	Contract *ContractDetails `json:"pessoaFisFunc"`
	Job      *Employment      `json:"pessoaFunc"`

	// Contact fields duplicated at the root by some export versions.
	// ContactField resolves root-then-nested.
	Email    string `json:"pesEmail"`
	Street   string `json:"pesEndRua"`
	District string `json:"pesEndBairro"`
	City     string `json:"pesEndCidade"`
	State    string `json:"pesEndEstado"`
	ZipCode  string `json:"pesEndCep"`
}

// Key returns the registration number zero-padded to the delivery key width.
func (r *EmployeeRecord) Key() string {
	return PadEmployeeNumber(r.EmployeeNumber.String())
}

// Contact returns the person contact fields, preferring the root-level
// duplicates over the nested "pessoa" object.
func (r *EmployeeRecord) Contact() Person {
	p := Person{
		Email:    r.Email,
		Street:   r.Street,
		District: r.District,
		City:     r.City,
		State:    r.State,
		ZipCode:  r.ZipCode,
	}
	if r.Person == nil {
		return p
	}
	if p.Email == "" {
		p.Email = r.Person.Email
	}
	if p.Street == "" {
		p.Street = r.Person.Street
	}
	if p.District == "" {
		p.District = r.Person.District
	}
	if p.City == "" {
		p.City = r.Person.City
	}
	if p.State == "" {
		p.State = r.Person.State
	}
	if p.ZipCode == "" {
		p.ZipCode = r.Person.ZipCode
	}
	return p
}

// NormalizeCode strips leading zeros from a status or company code so that
// "01" and "1" compare equal. An empty or all-zero code maps to "0".
func NormalizeCode(code string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(code), "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// PadEmployeeNumber left-pads a registration number with zeros to the
// delivery key width. Longer values pass through unchanged.
func PadEmployeeNumber(n string) string {
	n = strings.TrimSpace(n)
	if len(n) >= EmployeeKeyWidth {
		return n
	}
	return strings.Repeat("0", EmployeeKeyWidth-len(n)) + n
}

// FormatDateBR converts an ISO-like feed timestamp ("2025-02-18T00:00:00" or
// with a trailing Z) into DD/MM/YYYY by zone-naive truncation of the date
// part. Unparsable input yields "".
func FormatDateBR(iso string) string {
	datePart := isoDatePart(iso)
	if datePart == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return ""
	}
	return t.Format("02/01/2006")
}

// ParseISODate parses the date part of a feed timestamp.
func ParseISODate(iso string) (time.Time, bool) {
	datePart := isoDatePart(iso)
	if datePart == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isoDatePart(iso string) string {
	s := strings.ReplaceAll(strings.TrimSpace(iso), "Z", "")
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	if len(s) < 10 {
		return ""
	}
	return s[:10]
}

// FormatSalary renders the feed's numeric salary for the downstream row.
func FormatSalary(n json.Number) string {
	s := n.String()
	if s == "" {
		return ""
	}
	// Keep integral salaries free of a trailing ".0" regardless of how the
	// feed serialized them.
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}
