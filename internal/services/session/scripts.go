package session

import (
	"encoding/json"
	"fmt"
)

// fillScript sets the login inputs by DOM and fires input/change so the
// portal's form bindings observe the values. Returns "ok" or the missing field.
func fillScript(username, password string) string {
	user, _ := json.Marshal(username)
	pass, _ := json.Marshal(password)
	return fmt.Sprintf(`(() => {
	const find = (selectors) => {
		for (const sel of selectors) {
			const el = document.querySelector(sel);
			if (el) return el;
		}
		return null;
	};
	const set = (el, val) => {
		el.focus();
		el.value = val;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	};
	const userInput = find([
		'input[placeholder="Kullanıcı adı"]',
		'input[placeholder*="Kullanıcı"]',
		'input[placeholder*="E-posta"]',
		'input[placeholder*="Username"]',
		'form input[type="text"]',
	]);
	if (!userInput) return 'username';
	const passInput = find([
		'form input[type="password"]',
		'.modal input[type="password"]',
		'input[type="password"]',
	]);
	if (!passInput) return 'password';
	set(userInput, %s);
	set(passInput, %s);
	return 'ok';
})()`, user, pass)
}

// submitScript clicks the "Giriş" button, then any submit button, then
// submits the form holding the password field.
const submitScript = `(() => {
	for (const btn of document.querySelectorAll('button')) {
		if (btn.textContent && btn.textContent.trim() === 'Giriş') {
			btn.click();
			return true;
		}
	}
	const submit = document.querySelector('button[type="submit"], input[type="submit"]');
	if (submit) {
		submit.click();
		return true;
	}
	for (const form of document.querySelectorAll('form')) {
		if (form.querySelector('input[type="password"]')) {
			form.submit();
			return true;
		}
	}
	return false;
})()`

const bodyTextScript = `document.body ? document.body.innerText : ""`

const bodyHTMLScript = `document.body ? document.body.innerHTML : ""`
