package portal

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

const (
	testUser     = "joão.silva"
	testPassword = "s3nh@ forte"
	testCaptcha  = "X7KQ"
	testCaseLink = "/sei/controlador.php?acao=procedimento_trabalhar&id_procedimento=4242"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// fakePortal mimics the Portal closely enough to drive every flow: a
// Windows-1252 login page with a captcha, a cookie-gated listing and a case
// page with tree and history frames.
type fakePortal struct {
	*httptest.Server

	mu           sync.Mutex
	loginBodies  []string
	listingHTML  string
	expireDetail bool
	treeStatus   int
	historyHTML  string
	hits         map[string]int
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()
	fp := &fakePortal{
		listingHTML: listingAnchorsHTML,
		treeStatus:  http.StatusOK,
		historyHTML: historyHTML,
		hits:        make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sip/login.php", fp.login)
	mux.HandleFunc("/sip/captcha.php", func(w http.ResponseWriter, r *http.Request) {
		fp.hit("captcha")
		http.SetCookie(w, &http.Cookie{Name: "captcha_seen", Value: "1", Path: "/"})
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	})
	mux.HandleFunc("/sei/controlador.php", fp.controller)
	// The post-login landing page has no listing markers, so the list URL
	// is fetched next.
	mux.HandleFunc("/sei/inicializar.php", func(w http.ResponseWriter, r *http.Request) {
		fp.hit("landing")
		writeLegacy(w, `<html><body><div id="divInfraBarraSistema">SEI</div></body></html>`)
	})

	fp.Server = httptest.NewServer(mux)
	t.Cleanup(fp.Close)
	return fp
}

func (fp *fakePortal) profile() Profile {
	p := DefaultProfile()
	p.LoginURL = fp.URL + "/sip/login.php?sigla_orgao_sistema=GOVMG&sigla_sistema=SEI"
	p.ListURL = fp.URL + "/sei/controlador.php?acao=procedimento_controlar"
	p.HistoryURL = fp.URL + "/sei/controlador.php?acao=andamento_listar&id_procedimento=%s"
	return p
}

func (fp *fakePortal) client() *Client {
	return NewClient(fp.profile(), DefaultOptions())
}

func (fp *fakePortal) set(fn func(fp *fakePortal)) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fn(fp)
}

func (fp *fakePortal) hit(name string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.hits[name]++
}

func (fp *fakePortal) count(name string) int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.hits[name]
}

func (fp *fakePortal) lastLoginBody() string {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if len(fp.loginBodies) == 0 {
		return ""
	}
	return fp.loginBodies[len(fp.loginBodies)-1]
}

func (fp *fakePortal) login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		fp.hit("login_page")
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "sess-1", Path: "/"})
		writeLegacy(w, loginPageHTML(""))
		return
	}

	fp.hit("login_post")
	raw, _ := io.ReadAll(r.Body)
	fp.mu.Lock()
	fp.loginBodies = append(fp.loginBodies, string(raw))
	fp.mu.Unlock()

	form := parseLegacyForm(string(raw))
	if _, err := r.Cookie("PHPSESSID"); err != nil {
		writeLegacy(w, loginPageHTML("Sessão expirada."))
		return
	}
	if form["txtUsuario"] != testUser || form["pwdSenha"] != testPassword {
		writeLegacy(w, loginPageHTML("Usuário ou senha inválida."))
		return
	}
	// A captcha-free login is accepted for re-authentication.
	if captcha, ok := form["txtCaptcha"]; ok && captcha != testCaptcha {
		writeLegacy(w, loginPageHTML("Código de confirmação inválido."))
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "SEI_SESSION", Value: "auth-1", Path: "/"})
	w.Header().Set("Location", "/sei/inicializar.php")
	w.WriteHeader(http.StatusFound)
}

func (fp *fakePortal) controller(w http.ResponseWriter, r *http.Request) {
	authed := false
	if c, err := r.Cookie("SEI_SESSION"); err == nil && c.Value != "" {
		authed = true
	}

	switch r.URL.Query().Get("acao") {
	case "procedimento_controlar":
		fp.hit("list")
		if !authed {
			w.Header().Set("Location", "/sip/login.php")
			w.WriteHeader(http.StatusFound)
			return
		}
		fp.mu.Lock()
		body := fp.listingHTML
		fp.mu.Unlock()
		writeLegacy(w, body)
	case "procedimento_trabalhar":
		fp.hit("detail")
		fp.mu.Lock()
		expire := fp.expireDetail
		fp.expireDetail = false
		fp.mu.Unlock()
		if !authed || expire {
			w.Header().Set("Location", "/sip/login.php?sigla_sistema=SEI")
			w.WriteHeader(http.StatusFound)
			return
		}
		writeLegacy(w, casePageHTML)
	case "arvore_visualizar":
		fp.hit("tree")
		fp.mu.Lock()
		status := fp.treeStatus
		fp.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		writeLegacy(w, treeHTML)
	case "andamento_listar":
		fp.hit("history")
		fp.mu.Lock()
		body := fp.historyHTML
		fp.mu.Unlock()
		writeLegacy(w, body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeLegacy(w http.ResponseWriter, body string) {
	encoded, err := charmap.Windows1252.NewEncoder().String(body)
	if err != nil {
		panic(err)
	}
	w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
	_, _ = io.WriteString(w, encoded)
}

func parseLegacyForm(body string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(body, "&") {
		name, value, _ := strings.Cut(pair, "=")
		n, err := UnescapeValue(name)
		if err != nil {
			continue
		}
		v, err := UnescapeValue(value)
		if err != nil {
			continue
		}
		out[n] = v
	}
	return out
}

func loginPageHTML(message string) string {
	msg := ""
	if message != "" {
		msg = `<div id="divInfraMensagens">` + message + `</div>`
	}
	return `<html><head><title>SEI - Acesso</title></head><body>` + msg + `
<form id="frmLogin" method="post" action="login.php">
  <input type="hidden" name="hdnToken" value="tok-123" />
  <input type="hidden" name="hdnAcao" value="" />
  <input type="text" name="txtUsuario" id="txtUsuario" />
  <input type="password" name="pwdSenha" id="pwdSenha" />
  <select name="selOrgao"><option value="0">GOVMG</option><option value="28">SEPLAG</option></select>
  <img id="lblCaptcha" src="captcha.php?codetorandom=1" />
  <input type="text" name="txtCaptcha" />
  <button type="submit" name="sbmLogin" value="Acessar">Acessar</button>
</form></body></html>`
}

const listingAnchorsHTML = `<html><body>
<div id="divRecebidos">
  <div class="linha"><a href="controlador.php?acao=procedimento_trabalhar&amp;id_procedimento=4242" class="processoVisualizado" onmouseover="return infraTooltipMostrar('Licitação: Pregão Eletrônico','Aquisição urgente de medicamentos');">1500.01.0000001/2024-11</a> Secretaria de Saúde 05/02/2024</div>
  <div class="linha"><a href="controlador.php?acao=procedimento_trabalhar&amp;id_procedimento=4243" class="processoNaoVisualizado" title="Ofício de solicitação de materiais">1500.01.0000002/2024-22</a></div>
  <div class="linha"><a href="controlador.php?acao=procedimento_trabalhar&amp;id_procedimento=4242" class="processoVisualizado">1500.01.0000001/2024-11</a></div>
  <div class="linha"><a href="controlador.php?acao=procedimento_trabalhar&amp;id_procedimento=4244" class="processoVisualizado" title="1500.01.0000003/2024-33">1500.01.0000003/2024-33</a></div>
</div></body></html>`

const listingTableHTML = `<html><body>
<table class="infraTable" summary="Tabela de Processos">
  <tr><th></th><th></th><th>Processo</th><th>Interessados</th><th>Atribuição</th><th></th></tr>
  <tr class="infraTrClara">
    <td><input type="checkbox" /></td>
    <td><a href="controlador.php?acao=procedimento_trabalhar&amp;id_procedimento=77" class="infraLinkProcesso" onmouseover="return infraTooltipMostrar(&quot;Pessoal: Férias&quot;, &quot;Férias regulamentares&quot;);">2300.01.0000010/2023-05</a></td>
    <td>Maria Souza</td>
    <td>12/12/2023</td>
    <td>carlos.lima</td>
    <td></td>
  </tr>
  <tr class="infraTrEscura">
    <td><input type="checkbox" /></td>
    <td><a href="/sei/controlador.php?acao=procedimento_trabalhar&amp;id_procedimento=78">2300.01.0000011/2023-06</a></td>
    <td>Departamento de TI</td>
  </tr>
  <tr class="infraTrClara"><td>sem link</td><td></td><td></td></tr>
</table></body></html>`

const casePageHTML = `<html><body>
<iframe id="ifrArvore" name="ifrArvore" src="controlador.php?acao=arvore_visualizar&amp;id_procedimento=4242"></iframe>
<iframe id="ifrVisualizacao" name="ifrVisualizacao"></iframe>
</body></html>`

const treeHTML = `<html><body>
<a href="controlador.php?acao=procedimento_trabalhar&amp;id_procedimento=4242" target="ifrVisualizacao"><img src="/infra_css/imagens/pasta_aberta.gif" /> 1500.01.0000001/2024-11</a>
<a href="controlador.php?acao=documento_visualizar&amp;id_documento=9001" target="ifrVisualizacao"><img src="/imagens/documento.gif" /> Ofício 12 (9001)</a>
<a href="controlador.php?acao=documento_visualizar&amp;id_documento=9002" target="ifrVisualizacao"></a>
<a href="controlador.php?acao=outra" target="_blank">Ignorado</a>
</body></html>`

const historyHTML = `<html><body>
<table class="infraTable">
  <tr><th>Data/Hora</th><th>Unidade</th><th>Descrição</th></tr>
  <tr><td>06/02/2024 10:15</td><td>SES/GAB</td><td>Processo recebido na unidade</td></tr>
  <tr><td>05/02/2024 09:00</td><td>SES/PROT</td><td>Processo público gerado</td></tr>
  <tr><td>incompleto</td></tr>
</table></body></html>`
