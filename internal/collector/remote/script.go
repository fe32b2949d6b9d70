package remote

// collectScript is fed to "sh -s" on the remote host. It needs only a
// POSIX shell, awk and procfs; nvidia-smi is optional. It prints exactly
// one JSON object on stdout.
const collectScript = `
s1=$(head -n 1 /proc/stat)
sleep 0.5
s2=$(head -n 1 /proc/stat)
cpu=$(printf '%s\n%s\n' "$s1" "$s2" | awk '
	{ idle[NR] = $5 + $6; t = 0; for (i = 2; i <= NF; i++) t += $i; total[NR] = t }
	END { dt = total[2] - total[1]; di = idle[2] - idle[1]; if (dt > 0) printf "%.1f", (dt - di) * 100 / dt; else printf "0" }')

cpu_temp=0
for group in coretemp k10temp acpitz; do
	found=$(for hw in /sys/class/hwmon/hwmon*; do
		[ "$(cat "$hw/name" 2>/dev/null)" = "$group" ] && cat "$hw"/temp*_input 2>/dev/null
	done | awk 'BEGIN { m = 0 } $1 > m { m = $1 } END { if (m > 0) printf "%.1f", m / 1000 }')
	if [ -n "$found" ]; then
		cpu_temp=$found
		break
	fi
done

gpu_pct=0
gpu_temp="--"
if command -v nvidia-smi >/dev/null 2>&1; then
	gpu=$(nvidia-smi --query-gpu=utilization.gpu,temperature.gpu --format=csv,noheader,nounits 2>/dev/null | head -n 1)
	u=$(printf '%s' "$gpu" | cut -d, -f1 | tr -dc '0-9')
	t=$(printf '%s' "$gpu" | cut -s -d, -f2 | tr -dc '0-9')
	[ -n "$u" ] && gpu_pct=$u
	[ -n "$t" ] && gpu_temp="${t}°C"
fi

ram=$(awk '/^MemTotal:/ { t = $2 } /^MemAvailable:/ { a = $2 } END { printf "%.1f GB", (t - a) * 1024 / 1e9 }' /proc/meminfo)
uptime=$(awk '{ s = int($1); printf "%dd %dh", int(s / 86400), int((s % 86400) / 3600) }' /proc/uptime)

printf '{"cpu_pct":%s,"gpu_pct":%s,"gpu_temp":"%s","cpu_temp":%s,"ram_gb":"%s","uptime":"%s"}\n' \
	"$cpu" "$gpu_pct" "$gpu_temp" "$cpu_temp" "$ram" "$uptime"
`
