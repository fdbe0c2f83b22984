package server

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Resume Analyzer</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 860px; margin: 2rem auto; padding: 0 1rem; color: #222; }
textarea { width: 100%; min-height: 14rem; font: inherit; }
button { margin-top: 1rem; padding: .5rem 1.5rem; }
#result { white-space: pre-wrap; margin-top: 2rem; border-top: 1px solid #ddd; padding-top: 1rem; }
.error { color: #b00020; }
</style>
</head>
<body>
<h1>Resume Analyzer</h1>
<form id="analyze" action="/analyze" method="post" enctype="multipart/form-data">
  <label for="job_description">Job description</label>
  <textarea id="job_description" name="job_description" required></textarea>
  <p><label for="resume">Resume (PDF)</label>
  <input id="resume" name="resume" type="file" accept="application/pdf" required></p>
  <button type="submit">Analyze</button>
</form>
<div id="result"></div>
<script>
document.getElementById("analyze").addEventListener("submit", async (ev) => {
  ev.preventDefault();
  const out = document.getElementById("result");
  out.className = "";
  out.textContent = "Analyzing...";
  try {
    const res = await fetch("/analyze", { method: "POST", body: new FormData(ev.target) });
    const body = await res.json();
    if (!res.ok) {
      out.className = "error";
      out.textContent = body.error + (body.errors ? "\n" + JSON.stringify(body.errors, null, 2) : "");
      return;
    }
    out.textContent = body.analysis;
  } catch (err) {
    out.className = "error";
    out.textContent = String(err);
  }
});
</script>
</body>
</html>
`
