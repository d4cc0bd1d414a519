package classify

import (
	"sort"
	"strings"

	"github.com/lfreitas-dev/hrbridge/internal/feed"
)

// The role and department catalogs are derived from the same employee feed
// and imported before the employee stage, so every employee row references
// catalog entries the target already knows.

// roleHeader fixes the role-catalog column order.
var roleHeader = []string{
	"campo_chave", "codigo_legado", "nome", "id-empresa", "nome_cbo", "nro_cbo",
}

// departmentHeader fixes the department-catalog column order.
var departmentHeader = []string{
	"campo_chave", "codigo_legado", "nome", "conta", "id-empresa",
}

// RoleTable extracts the distinct roles referenced by the records, ordered by
// legacy code. The first occurrence of a code wins; a role without a
// description uses the code itself as its name. CBO columns stay empty, the
// feed carries no occupational classification.
func RoleTable(records []feed.EmployeeRecord) ([]string, [][]string) {
	names := make(map[string]string)
	var codes []string
	for i := range records {
		contract := records[i].Contract
		if contract == nil {
			continue
		}
		code := strings.TrimSpace(contract.RoleCode.String())
		if code == "" {
			continue
		}
		if _, seen := names[code]; seen {
			continue
		}
		names[code] = strings.TrimSpace(contract.RoleDescription)
		codes = append(codes, code)
	}
	sort.Strings(codes)

	body := make([][]string, 0, len(codes))
	for _, code := range codes {
		name := names[code]
		if name == "" {
			name = code
		}
		body = append(body, []string{"codigo_legado", code, name, "1", "", ""})
	}
	return roleHeader, body
}

// DepartmentTable extracts the distinct organizational units referenced by
// the records, ordered by legacy code. The unit code doubles as the account
// column; a unit without a denomination uses the code as its name.
func DepartmentTable(records []feed.EmployeeRecord) ([]string, [][]string) {
	names := make(map[string]string)
	var codes []string
	for i := range records {
		job := records[i].Job
		if job == nil || job.Placement == nil {
			continue
		}
		code := strings.TrimSpace(job.Placement.UnitCode.String())
		if code == "" {
			continue
		}
		if _, seen := names[code]; seen {
			continue
		}
		names[code] = strings.TrimSpace(job.Placement.UnitName)
		codes = append(codes, code)
	}
	sort.Strings(codes)

	body := make([][]string, 0, len(codes))
	for _, code := range codes {
		name := names[code]
		if name == "" {
			name = code
		}
		body = append(body, []string{"codigo_legado", code, name, code, "1"})
	}
	return departmentHeader, body
}
