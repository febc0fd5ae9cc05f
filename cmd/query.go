package main

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meta-n4vn33t/ndppd/mirror"
)

func init() {
	routesCmd.Flags().Uint32Var(&routesTableFlag, "table", mirror.DefaultTable, "only list routes in this kernel table")
	lookupCmd.Flags().Uint32Var(&lookupTableFlag, "table", mirror.DefaultTable, "kernel table to search")
}

var (
	routesTableFlag uint32
	lookupTableFlag uint32

	routesCmd = &cobra.Command{
		Use:   "routes",
		Short: "Dump the kernel's IPv6 routing table.",
		Run: func(cmd *cobra.Command, args []string) {
			monitor, teardown, err := primeMirror((*mirror.Monitor).QueryRoutes)
			if err != nil {
				slog.Error("couldn't reach the kernel", "err", err)
				os.Exit(1)
			}

			routes := monitor.Routes()
			teardown()

			if cmd.Flags().Changed("table") {
				n := 0
				for _, route := range routes {
					if route.Table == routesTableFlag {
						routes[n] = route
						n++
					}
				}
				routes = routes[:n]
			}

			w := tabwriter.NewWriter(os.Stdout, 1, 8, 2, ' ', 0)
			fmt.Fprintln(w, "DESTINATION\tOIF\tTABLE\tOWNED")
			for _, route := range routes {
				fmt.Fprintf(w, "%s\t%d\t%d\t%v\n", route.Dst, route.OIF, route.Table, route.Owned)
			}
			w.Flush()
		},
	}

	addressesCmd = &cobra.Command{
		Use:   "addresses",
		Short: "Dump the kernel's IPv6 interface addresses.",
		Run: func(cmd *cobra.Command, args []string) {
			monitor, teardown, err := primeMirror((*mirror.Monitor).QueryAddresses)
			if err != nil {
				slog.Error("couldn't reach the kernel", "err", err)
				os.Exit(1)
			}

			addrs := monitor.Addrs()
			teardown()

			w := tabwriter.NewWriter(os.Stdout, 1, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tIFINDEX")
			for _, addr := range addrs {
				fmt.Fprintf(w, "%s\t%d\n", addr.Addr, addr.IfIndex)
			}
			w.Flush()
		},
	}

	lookupCmd = &cobra.Command{
		Use:   "lookup ADDR",
		Short: "Find the most specific route containing an address.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			addr, err := netip.ParseAddr(args[0])
			if err != nil {
				slog.Error("couldn't parse the address", "addr", args[0], "err", err)
				os.Exit(1)
			}

			monitor, teardown, err := primeMirror((*mirror.Monitor).QueryRoutes)
			if err != nil {
				slog.Error("couldn't reach the kernel", "err", err)
				os.Exit(1)
			}

			route, ok := monitor.FindRoute(addr, lookupTableFlag)
			teardown()

			if !ok {
				fmt.Printf("no route contains %s in table %d\n", addr, lookupTableFlag)
				os.Exit(1)
			}
			fmt.Println(route)
		},
	}
)
