package registry

// defaultRules is the compiled-in catalog covering the common dynamic
// language attack surface. Deployments extend or replace it with a YAML
// file; see Load.
var defaultRules = []Rule{
	// Sources.
	{Language: "python", Pattern: "input", Role: RoleSource, Label: "high", Category: "untrusted"},
	{Language: "python", Pattern: "raw_input", Role: RoleSource, Label: "high", Category: "untrusted"},
	{Language: "python", Pattern: "request.args.get", Role: RoleSource, Label: "high", Category: "untrusted"},
	{Language: "python", Pattern: "request.args", Role: RoleSource, Label: "high", Category: "untrusted"},
	{Language: "python", Pattern: "request.form.get", Role: RoleSource, Label: "high", Category: "untrusted"},
	{Language: "python", Pattern: "request.form", Role: RoleSource, Label: "high", Category: "untrusted"},
	{Language: "python", Pattern: "request.cookies.get", Role: RoleSource, Label: "medium", Category: "untrusted"},
	{Language: "python", Pattern: "os.environ.get", Role: RoleSource, Label: "low", Category: "environment"},
	{Language: "python", Pattern: "sys.argv", Role: RoleSource, Label: "medium", Category: "untrusted"},
	{Language: "js", Pattern: "process.argv", Role: RoleSource, Label: "medium", Category: "untrusted"},
	{Language: "js", Pattern: "req.query", Role: RoleSource, Label: "high", Category: "untrusted"},
	{Language: "js", Pattern: "req.body", Role: RoleSource, Label: "high", Category: "untrusted"},

	// Sinks.
	{Language: "python", Pattern: "cursor.execute", Role: RoleSink, Kind: "sql-injection", Category: "sql", CWE: "CWE-89", Severity: "high"},
	{Language: "python", Pattern: "cursor.executemany", Role: RoleSink, Kind: "sql-injection", Category: "sql", CWE: "CWE-89", Severity: "high"},
	{Language: "python", Pattern: "db.execute", Role: RoleSink, Kind: "sql-injection", Category: "sql", CWE: "CWE-89", Severity: "high"},
	{Language: "python", Pattern: "os.system", Role: RoleSink, Kind: "command-injection", Category: "command", CWE: "CWE-78", Severity: "critical"},
	{Language: "python", Pattern: "os.popen", Role: RoleSink, Kind: "command-injection", Category: "command", CWE: "CWE-78", Severity: "critical"},
	{Language: "python", Pattern: "subprocess.call", Role: RoleSink, Kind: "command-injection", Category: "command", CWE: "CWE-78", Severity: "critical"},
	{Language: "python", Pattern: "subprocess.run", Role: RoleSink, Kind: "command-injection", Category: "command", CWE: "CWE-78", Severity: "critical"},
	{Language: "python", Pattern: "subprocess.Popen", Role: RoleSink, Kind: "command-injection", Category: "command", CWE: "CWE-78", Severity: "critical"},
	{Language: "python", Pattern: "eval", Role: RoleSink, Kind: "code-injection", Category: "code", CWE: "CWE-94", Severity: "critical"},
	{Language: "python", Pattern: "exec", Role: RoleSink, Kind: "code-injection", Category: "code", CWE: "CWE-94", Severity: "critical"},
	{Language: "python", Pattern: "pickle.loads", Role: RoleSink, Kind: "unsafe-deserialization", Category: "deserialization", CWE: "CWE-502", Severity: "high"},
	{Language: "python", Pattern: "yaml.load", Role: RoleSink, Kind: "unsafe-deserialization", Category: "deserialization", CWE: "CWE-502", Severity: "high"},
	{Language: "python", Pattern: "open", Role: RoleSink, Kind: "path-traversal", Category: "path", CWE: "CWE-22", Severity: "medium"},
	{Language: "python", Pattern: "render_template_string", Role: RoleSink, Kind: "template-injection", Category: "xss", CWE: "CWE-1336", Severity: "high"},
	{Language: "js", Pattern: "res.send", Role: RoleSink, Kind: "cross-site-scripting", Category: "xss", CWE: "CWE-79", Severity: "medium"},
	{Language: "js", Pattern: "child_process.exec", Role: RoleSink, Kind: "command-injection", Category: "command", CWE: "CWE-78", Severity: "critical"},

	// Sanitizers.
	{Language: "python", Pattern: "sanitize_int", Role: RoleSanitizer, Clears: []string{"sql", "command", "path", "code"}},
	{Language: "python", Pattern: "int", Role: RoleSanitizer, Clears: []string{"sql", "command", "path", "code", "xss"}},
	{Language: "python", Pattern: "shlex.quote", Role: RoleSanitizer, Clears: []string{"command"}},
	{Language: "python", Pattern: "html.escape", Role: RoleSanitizer, Clears: []string{"xss"}},
	{Language: "python", Pattern: "markupsafe.escape", Role: RoleSanitizer, Clears: []string{"xss"}},
	{Language: "python", Pattern: "os.path.basename", Role: RoleSanitizer, Clears: []string{"path"}},
	{Language: "js", Pattern: "encodeURIComponent", Role: RoleSanitizer, Clears: []string{"xss", "path"}},
	{Language: "js", Pattern: "parseInt", Role: RoleSanitizer, Clears: []string{"sql", "command", "path", "code", "xss"}},
}

// Default returns the compiled-in catalog.
func Default() *Catalog {
	c, err := Compile(defaultRules)
	if err != nil {
		// The compiled-in table is static; a compile failure is a bug.
		panic("registry: invalid default rules: " + err.Error())
	}
	return c
}
