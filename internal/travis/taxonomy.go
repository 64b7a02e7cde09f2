package travis

import "regexp"

// variant is an entry in the catalogue of sections that are recognised by
// their first line rather than by a fold directive.
type variant struct {
	name    string
	pattern *regexp.Regexp
	kind    Kind
	end     bannerEnd
	expect  []string
	// consumes means the first line becomes the block's header note. The
	// completion line is instead parsed by the block itself.
	consumes bool
}

// catalogue is tried in order against the colour-stripped line.
var catalogue = []variant{
	{
		name:     "_no_travis_yml_warning",
		pattern:  regexp.MustCompile(`^WARNING: We were unable to find a .travis.yml file.`),
		kind:     KindBanner,
		end:      endBlankLine,
		consumes: true,
	},
	{
		name:     "_worker",
		pattern:  regexp.MustCompile(`^Using worker`),
		kind:     KindBanner,
		end:      endBlankLine,
		consumes: true,
	},
	{
		name:     "_standard_configuration_warning",
		pattern:  regexp.MustCompile(`^Could not find .travis.yml, using standard configuration.`),
		kind:     KindBanner,
		consumes: true,
	},
	{
		name:     "_python_no_requirements",
		pattern:  regexp.MustCompile(`^Could not locate requirements.txt`),
		kind:     KindBanner,
		consumes: true,
	},
	{
		// some logs omit the blank line after this notice
		name:     "_container_notice",
		pattern:  regexp.MustCompile(`^This job is running on container-based infrastructure`),
		kind:     KindBanner,
		consumes: true,
	},
	{
		name:     "_repository_environment_variables",
		pattern:  regexp.MustCompile(`^Setting environment variables from repository settings`),
		kind:     KindEnvironment,
		consumes: true,
	},
	{
		name:     "_travis_yml_environment_variables",
		pattern:  regexp.MustCompile(`^Setting environment variables from \.travis\.yml`),
		kind:     KindEnvironment,
		consumes: true,
	},
	{
		name:     "_job_cancelled",
		pattern:  regexp.MustCompile(`^Done: Job Cancelled`),
		kind:     KindBanner,
		end:      endSingleLine,
		consumes: true,
	},
	{
		name:     "_job_stopped",
		pattern:  regexp.MustCompile(`^Your build has been stopped.`),
		kind:     KindBanner,
		consumes: true,
	},
	{
		name:    "_stalled_job_terminated",
		pattern: regexp.MustCompile(`^No output has been received in the last 10 minutes`),
		kind:    KindExact,
		expect: []string{
			"No output has been received in the last 10 minutes, this potentially indicates a stalled build or something wrong with the build itself.",
			"",
			"The build has been terminated",
		},
		consumes: true,
	},
	{
		name:    "_log_exceeded_job_terminated",
		pattern: regexp.MustCompile(`^The log length has exceeded the limit of 4 Megabytes`),
		kind:    KindExact,
		expect: []string{
			"The log length has exceeded the limit of 4 Megabytes (this usually means that test suite is raising the same exception over and over).",
			"",
			"The build has been terminated.",
		},
		consumes: true,
	},
	{
		name:    "_done",
		pattern: regexp.MustCompile(`^Done\. Your build exited with `),
		kind:    KindCompletion,
	},
}

// detect returns a new block when tok starts one of the catalogued sections.
func detect(tok Token) (*Block, error) {
	for _, v := range catalogue {
		if !v.pattern.MatchString(tok.Text) {
			continue
		}
		if v.kind == KindExact && tok.Text != v.expect[0] {
			return nil, blockErrorf("%s: expected %q", v.name, v.expect[0])
		}
		b := NewBlock(v.name, v.kind)
		b.end = v.end
		b.expect = v.expect
		if v.consumes {
			b.Elements = append(b.Elements, &Note{Lines: []string{tok.Raw}})
		}
		return b, nil
	}
	return nil, nil
}

// foldKind picks the variant for a block introduced by a fold directive.
func foldKind(name Name, legacy bool) Kind {
	switch {
	case legacy && name.Group == "git" && name.Seq == 1:
		return KindGit
	case name.Group == "apt":
		return KindApt
	case name.Group == "system_info":
		return KindNote
	case name.Group == "announce":
		return KindCommands
	}
	return KindMixed
}

// isVersionProbe reports whether a command echo starts the implicit versions
// section.
func isVersionProbe(tok Token) bool {
	return tok.Kind == TokenCommand && versionProbe.MatchString(tok.Text)
}
