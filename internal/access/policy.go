package access

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type policyDocument struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadTableYAML reads a permission table from YAML:
//
//	roles:
//	  platform_owner: [manage_platform, manage_all_users]
//	  company: [manage_company_users]
//	  employee: [view_data, edit_data]
//	  executor: [view_data]
func LoadTableYAML(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc policyDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidTable, err)
	}
	cfg := make(TableConfig, len(doc.Roles))
	for rawRole, rawPerms := range doc.Roles {
		role, _ := ParseRole(rawRole)
		perms := make([]Permission, 0, len(rawPerms))
		for _, raw := range rawPerms {
			p, _ := ParsePermission(raw)
			perms = append(perms, p)
		}
		cfg[role] = append(cfg[role], perms...)
	}
	return NewTable(cfg)
}

// LoadTableFile reads a YAML permission table from path. An empty path
// returns the default table.
func LoadTableFile(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("access: open policy file: %w", err)
	}
	defer f.Close()
	return LoadTableYAML(f)
}
