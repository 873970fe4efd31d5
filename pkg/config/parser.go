// Package config parses the declarative container description files
// accepted by the `deploy` command (spec.md §4.6, §9). The parser is
// deliberately NOT a real YAML implementation: it is a line-oriented,
// indentation-tracking key/value tree walker ported from the original's
// yaml_parser.c, quirks included. In particular, a nested mapping —
//
//	environment:
//	  FOO: bar
//
// resolves "environment" to the empty string, because the parent key's
// own value (the text after its colon, which is empty) is what gets
// returned, not a flattened form of its children. Only the inline form
//
//	environment: FOO=bar,BAZ=qux
//
// carries a usable value through to models.ContainerConfig. This is
// preserved intentionally (spec.md §9 Open Questions) rather than fixed,
// since downstream tooling and existing container descriptions depend on
// the inline form already.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/athulya-anil/distributed-lxc/pkg/models"
)

type node struct {
	key, value string
	child, next *node
}

// parseLine mirrors parse_yaml_line: returns ok=false for blank lines,
// comments, and lines without a colon.
func parseLine(line string) (key, value string, indent int, ok bool) {
	trimmed := strings.TrimRight(line, "\n")
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", 0, false
	}

	for indent < len(trimmed) && (trimmed[indent] == ' ' || trimmed[indent] == '\t') {
		indent++
	}

	rest := trimmed[indent:]
	idx := strings.IndexByte(rest, ':')
	if idx < 0 {
		return "", "", 0, false
	}

	key = strings.TrimSpace(rest[:idx])
	value = strings.TrimSpace(rest[idx+1:])
	return key, value, indent, true
}

// parseFile builds the key/value tree, replicating parse_yaml_file's
// indent-tracking placement rules (including its quirky fallback branch
// for a line that dedents past its immediate sibling level).
func parseFile(path string) (*node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot open %s: %w", path, err)
	}
	defer f.Close()

	var root, lastNode *node
	lastIndent := -1

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, indent, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}

		n := &node{key: key, value: value}

		switch {
		case root == nil:
			root = n
			lastNode = n
			lastIndent = indent

		case indent > lastIndent:
			if lastNode != nil {
				lastNode.child = n
			}

		case indent == lastIndent:
			if lastNode != nil {
				lastNode.next = n
			}

		default:
			if indent == 0 {
				p := root
				for p.next != nil {
					p = p.next
				}
				p.next = n
			} else if lastNode != nil {
				lastNode.next = n
			}
		}

		lastNode = n
		lastIndent = indent
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	return root, nil
}

// getValue mirrors get_yaml_value: depth-first, child-before-sibling.
func getValue(n *node, key string) (string, bool) {
	for n != nil {
		if n.key == key {
			return n.value, true
		}
		if v, ok := getValue(n.child, key); ok {
			return v, true
		}
		n = n.next
	}
	return "", false
}

// ParseContainerFile reads a declarative container description and
// extracts a ContainerConfig, mirroring extract_lxc_config.
func ParseContainerFile(path string) (models.ContainerConfig, error) {
	root, err := parseFile(path)
	if err != nil {
		return models.ContainerConfig{}, err
	}

	var cfg models.ContainerConfig
	if v, ok := getValue(root, "name"); ok {
		cfg.Name = v
	}
	if v, ok := getValue(root, "image"); ok {
		cfg.Image = v
	}
	if v, ok := getValue(root, "config"); ok {
		cfg.ConfigFile = v
	}
	if v, ok := getValue(root, "cpu_limit"); ok {
		cfg.CPULimit, _ = strconv.Atoi(v)
	}
	if v, ok := getValue(root, "memory_limit"); ok {
		cfg.MemLimit, _ = strconv.Atoi(v)
	}
	if v, ok := getValue(root, "privileged"); ok {
		cfg.Privileged = v == "true"
	}
	if v, ok := getValue(root, "environment"); ok {
		cfg.Environment = v
	}
	if v, ok := getValue(root, "mounts"); ok {
		cfg.Mounts = v
	}
	if v, ok := getValue(root, "network"); ok {
		cfg.Network = v
	}

	if cfg.Name == "" {
		return models.ContainerConfig{}, fmt.Errorf("config: %s has no name field", path)
	}

	return cfg, nil
}
