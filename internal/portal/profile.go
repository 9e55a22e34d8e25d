package portal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Profile describes one Portal deployment: where its pages live and which
// markup identifies each part of them. The defaults match the state
// government SEI installation; other deployments override fields from YAML.
type Profile struct {
	LoginURL        string `yaml:"login_url" toml:"login_url"`
	ListURL         string `yaml:"list_url" toml:"list_url"`
	HistoryURL      string `yaml:"history_url" toml:"history_url"` // %s is replaced by the case id
	CaseIDParam     string `yaml:"case_id_param" toml:"case_id_param"`
	LoginPathMarker string `yaml:"login_path_marker" toml:"login_path_marker"`

	CaptchaSelector string `yaml:"captcha_selector" toml:"captcha_selector"`
	ErrorSelector   string `yaml:"error_selector" toml:"error_selector"`
	TreeFrame       string `yaml:"tree_frame" toml:"tree_frame"`
	TreeLinkTarget  string `yaml:"tree_link_target" toml:"tree_link_target"`
	FolderIconHint  string `yaml:"folder_icon_hint" toml:"folder_icon_hint"`

	Fields         LoginFields       `yaml:"fields" toml:"fields"`
	HiddenDefaults map[string]string `yaml:"hidden_defaults" toml:"hidden_defaults"`
	SubmitLabel    string            `yaml:"submit_label" toml:"submit_label"`
	DefaultOrg     string            `yaml:"default_org" toml:"default_org"`

	ListingMarkers []string `yaml:"listing_markers" toml:"listing_markers"`
	DefaultUnit    string   `yaml:"default_unit" toml:"default_unit"`
}

// LoginFields names the five identity inputs of the login form.
type LoginFields struct {
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	Org      string `yaml:"org" toml:"org"`
	Submit   string `yaml:"submit" toml:"submit"`
	Captcha  string `yaml:"captcha" toml:"captcha"`
}

// Names returns the identity field names.
func (f LoginFields) Names() []string {
	return []string{f.Username, f.Password, f.Org, f.Submit, f.Captcha}
}

// DefaultProfile returns the profile for www.sei.mg.gov.br.
func DefaultProfile() Profile {
	return Profile{
		LoginURL:        "https://www.sei.mg.gov.br/sip/login.php?sigla_orgao_sistema=GOVMG&sigla_sistema=SEI&infra_url=L3NlaS8=",
		ListURL:         "https://www.sei.mg.gov.br/sei/controlador.php?acao=procedimento_controlar&acao_origem=procedimento_controlar&acao_retorno=procedimento_controlar&id_procedimento_atual=&id_documento_atual=&infra_sistema=100000100",
		HistoryURL:      "https://www.sei.mg.gov.br/sei/controlador.php?acao=andamento_listar&id_procedimento=%s&infra_sistema=100000100",
		CaseIDParam:     "id_procedimento",
		LoginPathMarker: "login.php",

		CaptchaSelector: "#lblCaptcha",
		ErrorSelector:   "#divInfraMensagens",
		TreeFrame:       "#ifrArvore",
		TreeLinkTarget:  "ifrVisualizacao",
		FolderIconHint:  "pasta",

		Fields: LoginFields{
			Username: "txtUsuario",
			Password: "pwdSenha",
			Org:      "selOrgao",
			Submit:   "sbmLogin",
			Captcha:  "txtCaptcha",
		},
		HiddenDefaults: map[string]string{
			"hdnAcao":               "1",
			"hdnInfraPrefixoCookie": "Sistema_Eletrônico_de_Informações",
		},
		SubmitLabel: "Acessar",
		DefaultOrg:  "0",

		ListingMarkers: []string{"infraTable", "processoVisualizado"},
		DefaultUnit:    "Padrão",
	}
}

// LoadProfile reads a YAML or TOML profile, chosen by extension, and layers
// it over the defaults. An empty path returns the defaults.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("read profile: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &profile)
	} else {
		err = yaml.Unmarshal(data, &profile)
	}
	if err != nil {
		return profile, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return profile, profile.Validate()
}

// Validate checks the fields every flow depends on.
func (p Profile) Validate() error {
	switch {
	case p.LoginURL == "":
		return fmt.Errorf("profile: login_url is required")
	case p.ListURL == "":
		return fmt.Errorf("profile: list_url is required")
	case p.Fields.Username == "" || p.Fields.Password == "":
		return fmt.Errorf("profile: username and password field names are required")
	}
	return nil
}
