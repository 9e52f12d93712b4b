package browser

// snapshotJS walks the DOM for visible interactive elements, parks live
// references on the window keyed by snapshot id, and returns the compact
// element list. Ids are only valid until the next snapshot.
const snapshotJS = `(() => {
	const roleOf = (el) => {
		const explicit = el.getAttribute('role');
		if (explicit) return explicit;
		const tag = el.tagName.toLowerCase();
		if (tag === 'a') return 'link';
		if (tag === 'button') return 'button';
		if (tag === 'select') return 'combobox';
		if (tag === 'textarea') return 'textbox';
		if (tag === 'input') {
			const type = (el.getAttribute('type') || 'text').toLowerCase();
			if (type === 'search') return 'searchbox';
			if (type === 'submit' || type === 'button' || type === 'image') return 'button';
			if (type === 'checkbox') return 'checkbox';
			if (type === 'radio') return 'radio';
			return 'textbox';
		}
		return tag;
	};
	const visible = (el) => {
		const rect = el.getBoundingClientRect();
		if (rect.width <= 0 || rect.height <= 0) return false;
		const style = window.getComputedStyle(el);
		return style.visibility !== 'hidden' && style.display !== 'none';
	};
	const nodes = document.querySelectorAll(
		'a[href], button, input, select, textarea, [role], [onclick]');
	const elements = [];
	window.__pilotElements = {};
	let id = 1;
	for (const el of nodes) {
		if (!visible(el)) continue;
		window.__pilotElements[id] = el;
		elements.push({
			id: id,
			role: roleOf(el),
			text: (el.innerText || el.value || el.getAttribute('aria-label') || '')
				.trim().replace(/\s+/g, ' ').slice(0, 200),
			href: el.getAttribute('href') || '',
		});
		id++;
	}
	return { url: window.location.href, elements: elements };
})()`

// clickJS activates a snapshot element by id. Focus follows the click so a
// subsequent TypeText lands in the right input.
const clickJS = `(() => {
	const el = (window.__pilotElements || {})[%d];
	if (!el) return false;
	el.scrollIntoView({ block: 'center', inline: 'center' });
	el.click();
	if (typeof el.focus === 'function') el.focus();
	return true;
})()`
