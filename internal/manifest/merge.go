package manifest

// mergeManagerSpec applies the overlay's fields onto base per spec.md §4.A:
//   - priority, repair_hint, script, shell, powershell, guest_detect.command:
//     overlay value if present, else base.
//   - errors: overlay replaces the whole list if non-empty; empty overlay keeps base
//     (there is no way to clear to empty — a documented limitation, not a bug).
//   - detect.files, detect.commands: overlay replaces the whole list if non-empty;
//     else base.
//   - detect.env: map merge, overlay keys win; empty overlay keeps base.
//   - guest_install.{apt,custom}: per-field overlay-preferred.
func mergeManagerSpec(base, overlay rawManagerSpec) rawManagerSpec {
	merged := rawManagerSpec{
		Name:     base.Name,
		Priority: orInt(overlay.Priority, base.Priority),
		Detect:   mergeDetectSpec(base.Detect, overlay.Detect),
		Init:     mergeInitSpec(base.Init, overlay.Init),
		Errors:   overlayOrBaseList(base.Errors, overlay.Errors),
		RepairHint: orString(overlay.RepairHint, base.RepairHint),
	}

	switch {
	case base.GuestDetect != nil && overlay.GuestDetect != nil:
		gd := mergeGuestDetect(*base.GuestDetect, *overlay.GuestDetect)
		merged.GuestDetect = &gd
	case overlay.GuestDetect != nil:
		merged.GuestDetect = overlay.GuestDetect
	case base.GuestDetect != nil:
		merged.GuestDetect = base.GuestDetect
	}

	switch {
	case base.GuestInstall != nil && overlay.GuestInstall != nil:
		gi := mergeInstallSpec(*base.GuestInstall, *overlay.GuestInstall)
		merged.GuestInstall = &gi
	case overlay.GuestInstall != nil:
		merged.GuestInstall = overlay.GuestInstall
	case base.GuestInstall != nil:
		merged.GuestInstall = base.GuestInstall
	}

	return merged
}

func mergeDetectSpec(base, overlay rawDetectSpec) rawDetectSpec {
	return rawDetectSpec{
		Files:    overlayOrBaseList(base.Files, overlay.Files),
		Commands: overlayOrBaseList(base.Commands, overlay.Commands),
		Env:      mergeEnvMap(base.Env, overlay.Env),
		Script:   orString(overlay.Script, base.Script),
	}
}

func mergeInitSpec(base, overlay rawInitSpec) rawInitSpec {
	return rawInitSpec{
		Shell:      orString(overlay.Shell, base.Shell),
		PowerShell: orString(overlay.PowerShell, base.PowerShell),
	}
}

func mergeGuestDetect(base, overlay rawGuestDetect) rawGuestDetect {
	return rawGuestDetect{Command: orString(overlay.Command, base.Command)}
}

func mergeInstallSpec(base, overlay rawInstallSpec) rawInstallSpec {
	return rawInstallSpec{
		Apt:    orString(overlay.Apt, base.Apt),
		Custom: orString(overlay.Custom, base.Custom),
	}
}

func mergeEnvMap(base, overlay map[string]string) map[string]string {
	if len(overlay) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

func overlayOrBaseList(base, overlay []string) []string {
	if len(overlay) == 0 {
		return base
	}
	return overlay
}

func orString(overlay *string, base *string) *string {
	if overlay != nil {
		return overlay
	}
	return base
}

func orInt(overlay *int, base *int) *int {
	if overlay != nil {
		return overlay
	}
	return base
}
