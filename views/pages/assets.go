package pages

import "strings"

const stylesheet = `<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f6f3ee;color:#1d1d1f}
main{max-width:960px;margin:0 auto;padding:1.5rem;display:grid;gap:1.5rem;grid-template-columns:2fr 1fr}
header.site{grid-column:1/-1;display:flex;justify-content:space-between;align-items:center}
.board,.standings,.invite{background:#fff;border-radius:12px;padding:1rem 1.25rem;box-shadow:0 1px 3px #0002}
.board-head{display:flex;justify-content:space-between;align-items:center}
.team{border-left:6px solid var(--team,#999);padding-left:.75rem;margin:.75rem 0;list-style:none}
.scores li{border-left:4px solid var(--team,#999);display:flex;justify-content:space-between;padding:.25rem .5rem}
.scores li[data-winner]{font-weight:700}
.turn{border-top:8px solid var(--team,#999);text-align:center}
.word{font-size:2.5rem;font-weight:700}
.timer{font-size:1.5rem}
.muted{color:#777}
button{padding:.4rem .9rem;border-radius:8px;border:1px solid #ccc;background:#fff;cursor:pointer}
button.primary{background:#e4572e;color:#fff;border-color:#e4572e}
button.ghost{border:none;background:none;color:#777}
.error{color:#b00020;min-height:1.2em}
</style>`

// clientScript posts data-cmd controls as commands and swaps the board and
// scores from the event stream.
const clientScript = `<script>
(function () {
  const id = document.querySelector("main").dataset.session;
  const errorBox = document.getElementById("error");

  function field(cmd, name, value) {
    const path = name.split(".");
    let target = cmd;
    while (path.length > 1) {
      const key = path.shift();
      target = target[key] = target[key] || {};
    }
    target[path[0]] = value;
  }

  async function send(cmd) {
    const res = await fetch("/game/" + id + "/commands", {
      method: "POST",
      headers: {"Content-Type": "application/json"},
      body: JSON.stringify(cmd),
    });
    if (!res.ok) {
      const body = await res.json().catch(() => ({error: res.statusText}));
      errorBox.textContent = body.error;
      return;
    }
    errorBox.textContent = "";
  }

  document.addEventListener("click", (e) => {
    const el = e.target.closest("button[data-cmd]");
    if (!el) return;
    const cmd = {type: el.dataset.cmd};
    for (const [k, v] of Object.entries(el.dataset)) {
      if (k !== "cmd") cmd[k] = v;
    }
    send(cmd);
  });

  document.addEventListener("submit", (e) => {
    const form = e.target.closest("form[data-cmd]");
    if (!form) return;
    e.preventDefault();
    const cmd = {type: form.dataset.cmd};
    for (const input of form.querySelectorAll("input[name]")) {
      if (input.type === "checkbox") field(cmd, input.name, input.checked);
      else if ("num" in input.dataset) { if (input.value !== "") field(cmd, input.name, Number(input.value)); }
      else field(cmd, input.name, input.value);
    }
    send(cmd).then(() => form.reset());
  });

  function paint(root) {
    for (const el of root.querySelectorAll("[data-color]")) {
      el.style.setProperty("--team", el.dataset.color);
    }
  }

  function swap(target, html) {
    const el = document.getElementById(target);
    el.innerHTML = html;
    paint(el);
  }

  paint(document);
  const stream = new EventSource("/game/" + id + "/stream");
  stream.addEventListener("board", (e) => swap("board", e.data));
  stream.addEventListener("scores", (e) => swap("scores", e.data));

  setInterval(() => {
    const timer = document.querySelector(".timer[data-deadline]");
    if (!timer) return;
    const left = Math.max(0, Math.ceil((Number(timer.dataset.deadline) - Date.now()) / 1000));
    timer.textContent = left + "s";
  }, 250);
})();
</script>`

func winnerLine(names []string) string {
	if len(names) == 0 {
		return "no winner"
	}
	return strings.Join(names, " & ")
}
