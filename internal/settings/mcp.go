package settings

// MergeMCPServers merges MCP server configuration with replacement
// semantics. Unlike DeepMerge (which unions arrays), a server present in
// both base and overlay is replaced wholesale — an overlay's args array
// must supersede the base's, not concatenate with it.
//
//   - overlay server entry null: the server is deleted
//   - overlay top-level key null: the key is deleted
//   - non-mcpServers keys: merged via DeepMerge rules
func MergeMCPServers(base, overlay Document) Document {
	result := deepCopy(base).(Document)

	for key, value := range overlay {
		if value == nil {
			delete(result, key)
			continue
		}

		if key == "mcpServers" {
			ov, overlayIsObj := value.(Document)
			ev, baseIsObj := result[key].(Document)
			if overlayIsObj && baseIsObj {
				for name, conf := range ov {
					if conf == nil {
						delete(ev, name)
					} else {
						ev[name] = deepCopy(conf)
					}
				}
				result[key] = ev
				continue
			}
		}

		if ov, ok := value.(Document); ok {
			if ev, ok := result[key].(Document); ok {
				result[key] = DeepMerge(ev, ov)
				continue
			}
		}
		result[key] = deepCopy(value)
	}
	return result
}

// MCPOverride extracts the MCP-relevant portion of a project override.
// Projects may declare servers either under "mcpServers" directly or
// under an "mcp" sub-document.
func MCPOverride(project Document) Document {
	if project == nil {
		return nil
	}
	if servers, ok := project["mcpServers"]; ok {
		return Document{"mcpServers": servers}
	}
	if sub, ok := project["mcp"].(Document); ok {
		return sub
	}
	return nil
}
