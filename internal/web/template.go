package web

import (
	"fmt"
	"html/template"
	"io"

	"github.com/voltbench/leakage-simulator/model"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"volts": func(v float64) string {
		return fmt.Sprintf("%.3f", v)
	},
	"seconds": func(s float64) string {
		return fmt.Sprintf("%.2f", s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Leakage Lab</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; background: #fafafa; }
h1 { font-size: 1.4em; }
.readouts { display: flex; gap: 2em; margin: 1em 0; }
.readout { flex: 1; }
.readout .label { color: #888; font-size: 0.85em; }
.readout .value { font-size: 1.6em; }
.mode-idle { color: #888; }
.mode-charging { color: #c80; }
.mode-discharging { color: #06c; }
.mode-paused { color: #808; }
canvas { width: 100%; height: 260px; border: 1px solid #ddd; background: #fff; }
.controls { margin: 1em 0; display: flex; gap: 0.5em; }
button { font-family: monospace; font-size: 1em; padding: 0.5em 1.2em; cursor: pointer; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
</style>
</head>
<body>
<h1>Leakage Lab<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<div class="readouts">
<div class="readout"><div class="label">Mode</div><div class="value mode-{{.Mode}}" id="mode">{{.Mode}}</div></div>
<div class="readout"><div class="label">Voltage</div><div class="value"><span id="voltage">{{volts .VoltageV}}</span> V</div></div>
<div class="readout"><div class="label">Stopwatch</div><div class="value"><span id="elapsed">{{seconds .ElapsedS}}</span> s</div></div>
</div>

<canvas id="chart" width="720" height="260"></canvas>

<div class="controls">
<button data-cmd="charge">Charge</button>
<button data-cmd="discharge">Discharge</button>
<button data-cmd="stop">Stop</button>
<button data-cmd="reset">Reset</button>
</div>

<table>
<tr><th>Source voltage</th><td>{{volts .Parameters.SourceVoltageV}} V</td></tr>
<tr><th>Resistance</th><td>{{.Parameters.ResistanceOhm}} &#8486;</td></tr>
<tr><th>Capacitance</th><td>{{.Parameters.CapacitanceF}} F</td></tr>
<tr><th>Time constant &#964;</th><td>{{seconds .Parameters.TimeConstantS}} s</td></tr>
</table>

<script>
(function() {
  var dot = document.getElementById("live-dot");
  var modeEl = document.getElementById("mode");
  var voltEl = document.getElementById("voltage");
  var elapsedEl = document.getElementById("elapsed");
  var canvas = document.getElementById("chart");
  var ctx = canvas.getContext("2d");
  var sock = null;

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function drawTrace(trace, sourceV) {
    ctx.clearRect(0, 0, canvas.width, canvas.height);
    if (!trace || trace.length < 2 || sourceV <= 0) {
      return;
    }
    var t0 = trace[0].time_s;
    var span = trace[trace.length - 1].time_s - t0;
    if (span <= 0) {
      span = 1;
    }
    ctx.strokeStyle = "#06c";
    ctx.lineWidth = 2;
    ctx.beginPath();
    for (var i = 0; i < trace.length; i++) {
      var x = ((trace[i].time_s - t0) / span) * canvas.width;
      var y = canvas.height - (trace[i].voltage_v / sourceV) * canvas.height;
      if (i === 0) {
        ctx.moveTo(x, y);
      } else {
        ctx.lineTo(x, y);
      }
    }
    ctx.stroke();
  }

  function render(frame) {
    modeEl.textContent = frame.mode;
    modeEl.className = "value mode-" + frame.mode;
    voltEl.textContent = frame.voltage_v.toFixed(3);
    elapsedEl.textContent = frame.elapsed_s.toFixed(2);
    drawTrace(frame.trace, frame.source_voltage_v);
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss" : "ws";
    sock = new WebSocket(proto + "://" + location.host + "/ws");
    sock.onopen = function() { setDot("ok", "live"); };
    sock.onclose = function() {
      setDot("err", "disconnected");
      sock = null;
      setTimeout(connect, 2000);
    };
    sock.onmessage = function(ev) {
      try {
        render(JSON.parse(ev.data));
      } catch (e) {}
    };
  }
  connect();

  function send(cmd) {
    if (sock && sock.readyState === WebSocket.OPEN) {
      sock.send(JSON.stringify({command: cmd}));
      return;
    }
    fetch("/api/control", {
      method: "POST",
      headers: {"Content-Type": "application/json"},
      body: JSON.stringify({command: cmd})
    });
  }

  var buttons = document.querySelectorAll("button[data-cmd]");
  for (var i = 0; i < buttons.length; i++) {
    buttons[i].addEventListener("click", function(ev) {
      send(ev.target.getAttribute("data-cmd"));
    });
  }
})();
</script>
</body>
</html>
`

func renderIndex(w io.Writer, snap model.Snapshot) error {
	return indexTmpl.Execute(w, snap)
}
