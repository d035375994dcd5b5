package main

import (
	"fmt"
	"net"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/connctd/rahmen"
)

func init() {
	rootCmd.AddCommand(probeCmd)
	rootCmd.PersistentFlags().StringVar(&protoName, "proto", "udp", "Transport protocol: udp, tcp-client or tcp-server")
	rootCmd.PersistentFlags().StringVar(&cipherName, "cipher", "AES-256-GCM", "Data channel cipher")
	rootCmd.PersistentFlags().StringVar(&authName, "auth", "SHA1", "Data channel HMAC digest")
	rootCmd.PersistentFlags().IntVar(&tunMTU, "tun-mtu", 0, "Device MTU the budget is based on")
	rootCmd.PersistentFlags().IntVar(&linkMTU, "link-mtu", 0, "Wire MTU the budget is based on, mutually exclusive with --tun-mtu")
	rootCmd.PersistentFlags().BoolVar(&sharedSecret, "secret", false, "Static pre-shared key mode instead of negotiated keys")
	rootCmd.PersistentFlags().BoolVar(&plaintext, "plaintext", false, "No cryptographic framing at all")
	rootCmd.PersistentFlags().BoolVar(&usePeerID, "peer-id", false, "Account for the long data channel header carrying a peer id")
	rootCmd.PersistentFlags().BoolVar(&noReplay, "no-replay", false, "Disable replay protection")
	rootCmd.PersistentFlags().BoolVar(&socksProxy, "socks-proxy", false, "Account for a SOCKS5 UDP relay on the link")
	rootCmd.PersistentFlags().StringVar(&compressName, "compress", "", "Compression algorithm: lzo, lz4, stub, lz4-v2 or stub-v2")
	rootCmd.PersistentFlags().BoolVar(&fragment, "fragment", false, "Account for the internal fragmentation header")
	rootCmd.PersistentFlags().BoolVar(&tapDevice, "tap", false, "Budget for an ethernet style device")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	probeCmd.Flags().StringVar(&remoteAddr, "remote", "", "Remote host:port the probe packets are sent to")
	probeCmd.Flags().StringVar(&mtuDisc, "mtu-disc", "yes", "Path MTU discovery mode: yes, maybe or no")
	probeCmd.Flags().IntVar(&probeCount, "count", 10, "Number of probe packets to send")
	probeCmd.Flags().DurationVar(&probeInterval, "interval", 250*time.Millisecond, "Delay between probe packets")
}

var (
	protoName    = "udp"
	cipherName   = "AES-256-GCM"
	authName     = "SHA1"
	tunMTU       = 0
	linkMTU      = 0
	sharedSecret = false
	plaintext    = false
	usePeerID    = false
	noReplay     = false
	socksProxy   = false
	compressName = ""
	fragment     = false
	tapDevice    = false
	verbose      = false

	remoteAddr    = ""
	mtuDisc       = "yes"
	probeCount    = 10
	probeInterval = 250 * time.Millisecond
)

var (
	rootCmd = &cobra.Command{
		Use:   "rahmen-probe",
		Short: "Inspect and probe the packet size budget of a tunnel configuration",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			cfg, frame, keyType := mustFrame()

			announced, err := rahmen.OptionsStringLinkMTU(cfg, frame)
			if err != nil {
				er(err)
			}
			ktName := keyType.String()
			if !cfg.Secured() {
				ktName = "plaintext"
			}

			fmt.Println(frame.Format("FRAME"))
			fmt.Printf(`
Key type:         %s
Link MTU:         %d
Dynamic link MTU: %d
Tun MTU:          %d
Payload size:     %d
Max read size:    tun %d / link %d
Buffer size:      %d (headroom %d)
Announced MTU:    %d
`, ktName, frame.LinkMTU(), frame.LinkMTUDynamic(), frame.TunMTUSize(),
				frame.PayloadSize(), frame.MaxRWSizeTun(), frame.MaxRWSizeLink(),
				frame.BufSize(), frame.Headroom(0), announced)
		},
	}

	probeCmd = &cobra.Command{
		Use:   "probe",
		Short: "Send oversized probes and shrink the dynamic MTU from the kernel's discovery feedback",
		Run: func(cmd *cobra.Command, args []string) {
			if remoteAddr == "" {
				er(fmt.Errorf("--remote is required to probe"))
			}
			discType, err := rahmen.TranslateMTUDiscoverTypeName(mtuDisc)
			if err != nil {
				er(err)
			}
			_, frame, _ := mustFrame()

			raddr, err := net.ResolveUDPAddr("udp", remoteAddr)
			if err != nil {
				er(err)
			}
			conn, err := net.DialUDP("udp", nil, raddr)
			if err != nil {
				er(err)
			}
			defer conn.Close()

			family := rahmen.FamilyIPv4
			if raddr.IP.To4() == nil {
				family = rahmen.FamilyIPv6
			}
			logger := rahmen.LogrusLogger(log.StandardLogger())
			if err := rahmen.SetMTUDiscoverType(conn, discType, family, logger); err != nil {
				er(err)
			}
			if err := rahmen.EnableExtendedErrorPassing(conn, family, logger); err != nil {
				er(err)
			}

			payload := make([]byte, frame.PayloadSizeDynamic())
			for i := 0; i < probeCount; i++ {
				if _, err := conn.Write(payload[:frame.PayloadSizeDynamic()]); err != nil {
					log.WithError(err).Debug("Probe write failed, checking the error queue")
				}
				time.Sleep(probeInterval)

				diag, pathMTU, err := rahmen.DrainErrorQueue(conn, logger)
				if err != nil {
					er(err)
				}
				if diag != "" {
					log.WithField("events", diag).Info("Drained discovery feedback")
				}
				if pathMTU > 0 {
					before := frame.LinkMTUDynamic()
					frame.SetMTUDynamic(pathMTU, rahmen.SetMTUUpperBound)
					log.WithFields(log.Fields{
						"pathMTU": pathMTU,
						"before":  before,
						"after":   frame.LinkMTUDynamic(),
					}).Info("Adjusted dynamic link MTU")
				}
			}
			fmt.Println(frame.Format("RESULT"))
		},
	}
)

func buildConfig() (*rahmen.Config, error) {
	cfg := rahmen.DefaultConfig()

	proto, err := rahmen.ParseProto(protoName)
	if err != nil {
		return nil, err
	}
	cfg.Proto = proto

	compress, err := rahmen.ParseCompressAlg(compressName)
	if err != nil {
		return nil, err
	}
	cfg.Compress = compress

	cfg.CipherName = cipherName
	cfg.AuthName = authName
	cfg.SharedSecret = sharedSecret
	cfg.TLSClient = !sharedSecret && !plaintext
	cfg.UsePeerID = usePeerID
	cfg.Replay = !noReplay
	cfg.SocksProxy = socksProxy
	cfg.Fragment = fragment
	cfg.TapDevice = tapDevice

	if tunMTU > 0 {
		cfg.TunMTU = tunMTU
	}
	if linkMTU > 0 {
		cfg.LinkMTUDefined = true
		cfg.LinkMTU = linkMTU
		if tunMTU <= 0 {
			cfg.TunMTUDefined = false
		}
	}
	return cfg, nil
}

func mustFrame() (*rahmen.Config, *rahmen.Frame, rahmen.KeyType) {
	cfg, err := buildConfig()
	if err != nil {
		er(err)
	}
	var keyType rahmen.KeyType
	if cfg.Secured() {
		keyType, err = rahmen.NewKeyType(cfg.CipherName, cfg.AuthName)
		if err != nil {
			er(err)
		}
	}
	frame, err := rahmen.BuildFrame(cfg, keyType, rahmen.LogrusLogger(log.StandardLogger()))
	if err != nil {
		er(err)
	}
	return cfg, frame, keyType
}

func er(err error) {
	fmt.Printf("Error: %s\n", err)
	os.Exit(1)
}

func main() {
	rootCmd.Execute()
}
