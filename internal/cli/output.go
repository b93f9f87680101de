package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ceyewan/srvd/registry"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

// writeInstances 以两列表格输出：实例 ID 与负载
func writeInstances(w io.Writer, list []registry.Instance) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPAYLOAD")
	for _, inst := range list {
		fmt.Fprintf(tw, "%s\t%s\n", inst.ID, inst.Raw)
	}
	return tw.Flush()
}
