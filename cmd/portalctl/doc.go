// Command portalctl drives the gateway's Portal engine from a terminal.
//
// The stateless contract is kept by a small JSON state file that carries
// the challenge and session cookies from one invocation to the next:
//
//	portalctl challenge --captcha-out captcha.png
//	PORTAL_PASSWORD=... portalctl list --user joao.silva --captcha X7KQ
//	portalctl detail --link 'https://.../controlador.php?acao=procedimento_trabalhar&id_procedimento=1'
//	PORTAL_PASSWORD=... portalctl capture --user joao.silva --captcha X7KQ --out listing.html.gz
//	portalctl extract --in listing.html.gz
package main
