package http

import (
	"github.com/pmos-desktop/sei-gateway/internal/enrich"
	"github.com/pmos-desktop/sei-gateway/internal/portal"
)

// challengeResponse is the wire form of a portal.Challenge.
type challengeResponse struct {
	CaptchaImage *string           `json:"captcha_image"`
	CaptchaMIME  string            `json:"captcha_mime,omitempty"`
	Cookies      portal.Jar        `json:"cookies"`
	HiddenFields map[string]string `json:"hidden_fields"`
	LoginURL     string            `json:"login_url"`
}

func newChallengeResponse(ch *portal.Challenge) challengeResponse {
	hidden := ch.HiddenFields
	if hidden == nil {
		hidden = map[string]string{}
	}
	return challengeResponse{
		CaptchaImage: encodeCaptcha(ch.CaptchaImage),
		CaptchaMIME:  ch.CaptchaMIME,
		Cookies:      nonNilJar(ch.Cookies),
		HiddenFields: hidden,
		LoginURL:     ch.LoginURL,
	}
}

// processesRequest echoes a challenge back together with the credentials.
type processesRequest struct {
	Username     string            `json:"usuario"`
	Password     string            `json:"senha"`
	OrgCode      string            `json:"orgao"`
	Captcha      string            `json:"captcha"`
	Cookies      portal.Jar        `json:"cookies"`
	HiddenFields map[string]string `json:"hidden_fields"`
	LoginURL     string            `json:"login_url"`
}

func (r processesRequest) credentials() portal.Credentials {
	return portal.Credentials{
		Username:      r.Username,
		Password:      r.Password,
		OrgCode:       r.OrgCode,
		CaptchaAnswer: r.Captcha,
	}
}

func (r processesRequest) challenge() *portal.Challenge {
	return &portal.Challenge{
		Cookies:      nonNilJar(r.Cookies),
		HiddenFields: r.HiddenFields,
		LoginURL:     r.LoginURL,
	}
}

type processesResponse struct {
	Processes any                `json:"processos"`
	Total     int                `json:"total"`
	Cookies   portal.Jar         `json:"cookies"`
	Debug     portal.Diagnostics `json:"debug"`
	// Summary is set only when records are enriched.
	Summary *enrich.Backlog `json:"resumo_geral,omitempty"`
}

// detailsRequest carries the session cookies plus credentials for a
// captcha-free re-login.
type detailsRequest struct {
	Username string     `json:"usuario"`
	Password string     `json:"senha"`
	OrgCode  string     `json:"orgao"`
	Link     string     `json:"link_sei"`
	Cookies  portal.Jar `json:"cookies"`
}

func (r detailsRequest) detailRequest() portal.DetailRequest {
	return portal.DetailRequest{
		Credentials: portal.Credentials{
			Username: r.Username,
			Password: r.Password,
			OrgCode:  r.OrgCode,
		},
		Cookies: nonNilJar(r.Cookies),
		Link:    r.Link,
	}
}

type detailsResponse struct {
	Tree    []portal.TreeNode `json:"tree"`
	History []portal.Movement `json:"history"`
}
